// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package initscript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EmbeddedURLPrefix gates initialization. URLs without it are left alone.
const EmbeddedURLPrefix = "jdbc:h2"

// ErrNotEmbedded is returned for jdbc:h2 URLs that address a database server
// instead of an embedded database.
var ErrNotEmbedded = errors.New("not an embedded database url")

// Target describes the embedded database a URL points at.
type Target struct {
	// Path is ":memory:" for a private in-memory database, the database
	// name for a named in-memory database, or a file path.
	Path string

	// Memory is true for in-memory databases.
	Memory bool

	// Settings holds the ";NAME=VALUE" suffixes of the URL. They are
	// engine specific and are not passed to SQLite.
	Settings map[string]string
}

// Applicable reports whether url names an embedded database that should be
// initialized.
func Applicable(url string) bool {
	return url != "" && strings.HasPrefix(url, EmbeddedURLPrefix)
}

// ParseURL translates a jdbc:h2 URL into a Target.
func ParseURL(url string) (Target, error) {
	if !Applicable(url) {
		return Target{}, fmt.Errorf("%q: missing %s prefix", url, EmbeddedURLPrefix)
	}
	rest, ok := strings.CutPrefix(url, EmbeddedURLPrefix+":")
	if !ok {
		return Target{}, fmt.Errorf("%q: malformed url", url)
	}

	var t Target
	rest, settings, _ := strings.Cut(rest, ";")
	if settings != "" {
		t.Settings = make(map[string]string)
		for _, kv := range strings.Split(settings, ";") {
			if kv == "" {
				continue
			}
			k, v, _ := strings.Cut(kv, "=")
			t.Settings[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}

	switch {
	case strings.HasPrefix(rest, "tcp:"), strings.HasPrefix(rest, "ssl:"):
		return Target{}, fmt.Errorf("%q: %w", url, ErrNotEmbedded)
	case strings.HasPrefix(rest, "mem:"):
		t.Memory = true
		t.Path = strings.TrimPrefix(rest, "mem:")
		if t.Path == "" {
			t.Path = ":memory:"
		}
		return t, nil
	}

	path := strings.TrimPrefix(rest, "file:")
	if path == "" {
		return Target{}, fmt.Errorf("%q: missing database path", url)
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Target{}, fmt.Errorf("%q: %w", url, err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	t.Path = path
	return t, nil
}

// dsnBase returns the URI part of the DSN, before any pragmas.
func dsnBase(t Target) string {
	switch {
	case t.Memory && t.Path == ":memory:":
		return "file::memory:"
	case t.Memory:
		return "file:" + t.Path + "?mode=memory&cache=shared"
	}
	return "file:" + t.Path
}

// dsn returns the driver data source name for the target.
func (t Target) dsn() string {
	if t.Memory {
		return buildDSN(t, memoryPragmas)
	}
	return buildDSN(t, persistentPragmas)
}
