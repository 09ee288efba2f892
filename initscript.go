// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package initscript

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Property names read by ConfigFromLookup.
const (
	KeyURL        = "db.url"
	KeyUsername   = "db.username"
	KeyPassword   = "db.password"
	KeyInitScript = "db.init-script"
)

// Conn is the connection scripts run on. The initializer closes it when
// it is done.
type Conn interface {
	Execer
	io.Closer
}

// Opener opens the connection for url. Username and password are passed
// through unchanged; they may be empty.
type Opener func(ctx context.Context, url, username, password string) (Conn, error)

// Config holds initialization options.
type Config struct {
	// URL of the database. Initialization only happens for URLs starting
	// with "jdbc:h2"; anything else is silently skipped.
	URL string

	// Username and Password are handed to the Opener. SQLite ignores them.
	Username string
	Password string

	// InitScript lists the scripts to run, separated by ";".
	// Entries are "file:<path>" or the name of a resource in Resources.
	InitScript string

	// Resources resolves resource names. Optional - if nil, only "file:"
	// entries can be resolved.
	Resources fs.FS

	// Runner executes each script. The zero value continues past failing
	// statements.
	Runner Runner

	// Opener opens the connection. Uses OpenEmbedded if nil.
	Opener Opener

	// Logger for operational logging. Uses slog.Default() if nil.
	Logger *slog.Logger
}

// defaults returns a copy of cfg with default values applied.
func (cfg Config) defaults() Config {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Opener == nil {
		cfg.Opener = OpenEmbedded
	}
	if cfg.Runner.Logger == nil {
		cfg.Runner.Logger = cfg.Logger
	}
	return cfg
}

// ConfigFromLookup builds a Config from a property lookup such as
// viper.GetString. Missing keys must be returned as "".
func ConfigFromLookup(get func(key string) string) Config {
	return Config{
		URL:        get(KeyURL),
		Username:   get(KeyUsername),
		Password:   get(KeyPassword),
		InitScript: get(KeyInitScript),
	}
}

// ScriptResult holds the statement outcomes of one script.
type ScriptResult struct {
	Ref      ScriptRef
	Outcomes []Outcome
}

// Result describes what Initialize did.
type Result struct {
	// Applied is false when the URL is not an embedded database URL.
	Applied bool
	Scripts []ScriptResult
}

// Failed returns the number of statements that failed.
func (r *Result) Failed() int {
	n := 0
	for _, s := range r.Scripts {
		for _, o := range s.Outcomes {
			if o.Err != nil {
				n++
			}
		}
	}
	return n
}

// Initialize runs the configured init scripts once, in order.
//
// If cfg.URL is not an embedded database URL, Initialize does nothing and
// returns a Result with Applied false. Otherwise it opens one connection,
// runs every script on it and closes it.
//
// Statement failures inside a script are logged and recorded in the Result.
// Failing to connect or to open a script is fatal: the error is logged and
// returned, and the remaining scripts are not run.
func Initialize(ctx context.Context, cfg Config) (*Result, error) {
	cfg = cfg.defaults()

	if !Applicable(cfg.URL) {
		cfg.Logger.Debug("init skipped: not an embedded database url", "url", cfg.URL)
		return &Result{}, nil
	}
	if cfg.Username != "" || cfg.Password != "" {
		cfg.Logger.Debug("credentials are passed to the opener", "username", cfg.Username)
	}

	conn, err := cfg.Opener(ctx, cfg.URL, cfg.Username, cfg.Password)
	if err != nil {
		cfg.Logger.Error("datasource init error", "url", cfg.URL, "error", err)
		return nil, fmt.Errorf("open %s: %w", cfg.URL, err)
	}

	if strings.TrimSpace(cfg.InitScript) != "" {
		for i, entry := range strings.Split(cfg.InitScript, ScriptSeparator) {
			if strings.TrimSpace(entry) == "" {
				cfg.Logger.Debug("skipping empty script entry", "index", i)
			}
		}
	}

	result := &Result{Applied: true}
	if err := execute(ctx, cfg, conn, ParseScriptList(cfg.InitScript), result); err != nil {
		cfg.Logger.Error("datasource init error", "url", cfg.URL, "error", err)
		return result, err
	}
	return result, nil
}

// execute runs refs on conn and always closes conn.
func execute(ctx context.Context, cfg Config, conn Conn, refs []ScriptRef, result *Result) (err error) {
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()

	for _, ref := range refs {
		outcomes, err := runScript(ctx, cfg, conn, ref)
		if outcomes != nil || err == nil {
			result.Scripts = append(result.Scripts, ScriptResult{Ref: ref, Outcomes: outcomes})
		}
		if err != nil {
			return fmt.Errorf("%s: %w", ref, err)
		}
	}
	return nil
}

func runScript(ctx context.Context, cfg Config, conn Conn, ref ScriptRef) ([]Outcome, error) {
	r, err := ref.Open(cfg.Resources)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	cfg.Logger.Info("execute schema sql", "script", ref.Location, "kind", ref.Kind)
	return cfg.Runner.Run(ctx, conn, r)
}

// OpenEmbedded is the default Opener. It translates a jdbc:h2 URL into a
// SQLite database and connects to it with a single connection.
// SQLite has no authentication, so username and password are ignored.
func OpenEmbedded(ctx context.Context, url, _, _ string) (Conn, error) {
	target, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, driverName, target.dsn())
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	// one connection: a private in-memory database is per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return db, nil
}
