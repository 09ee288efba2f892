// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package initscript

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// DefaultDelimiter terminates statements unless a script changes it.
const DefaultDelimiter = ";"

// maxLineLength bounds a single script line.
const maxLineLength = 16 * 1024 * 1024

// ErrMissingTerminator is returned when a script ends in the middle of a
// statement.
var ErrMissingTerminator = errors.New("line missing end-of-line terminator")

// reDelimiter matches a "-- @DELIMITER x" or "// @DELIMITER x" comment.
var reDelimiter = regexp.MustCompile(`(?i)^\s*(?:--|//)?\s*(?://)?\s*@DELIMITER\s+(\S+)`)

// Execer executes a single statement. *sql.DB, *sql.Conn, *sql.Tx and
// *sqlx.DB all satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Outcome records the execution of one statement.
type Outcome struct {
	// Line is the script line that terminated the statement.
	Line      int
	Statement string
	// Err is nil if the statement succeeded.
	Err error
}

// StatementError is returned by Runner.Run when a statement fails and the
// runner is configured to stop.
type StatementError struct {
	Line      int
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Runner executes the statements of a SQL script against a connection.
// The zero value uses ";" as delimiter and continues past failing statements.
type Runner struct {
	// Delimiter terminates a statement. Default: ";".
	// Scripts may change it with a "-- @DELIMITER x" comment line.
	Delimiter string

	// FullLineDelimiter requires the delimiter to be alone on its line.
	// By default any line containing the delimiter ends the statement.
	FullLineDelimiter bool

	// SendFullScript executes the whole script as a single statement.
	// Any failure is returned, regardless of StopOnError.
	SendFullScript bool

	// StopOnError makes Run return the first statement failure.
	// By default failures are logged, recorded and skipped.
	StopOnError bool

	// Logger for statement failures. Uses slog.Default() if nil.
	Logger *slog.Logger
}

// defaults returns a copy of r with default values applied.
func (r Runner) defaults() Runner {
	if r.Delimiter == "" {
		r.Delimiter = DefaultDelimiter
	}
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	return r
}

// Run reads statements from src and executes each one against db.
// Every statement runs on its own, so it is committed as soon as it succeeds
// when db is not inside a transaction.
//
// The returned outcomes cover every statement attempted, including the one
// that caused a returned error.
func (r Runner) Run(ctx context.Context, db Execer, src io.Reader) ([]Outcome, error) {
	r = r.defaults()
	if r.SendFullScript {
		return r.runFullScript(ctx, db, src)
	}
	return r.runLineByLine(ctx, db, src)
}

func (r Runner) runFullScript(ctx context.Context, db Execer, src io.Reader) ([]Outcome, error) {
	b, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	script := strings.ReplaceAll(string(b), "\r\n", "\n")
	if strings.TrimSpace(script) == "" {
		return nil, nil
	}
	line := strings.Count(script, "\n") + 1
	o := Outcome{Line: line, Statement: script}
	if _, err := db.ExecContext(ctx, script); err != nil {
		o.Err = err
		return []Outcome{o}, &StatementError{Line: line, Statement: script, Err: err}
	}
	return []Outcome{o}, nil
}

func (r Runner) runLineByLine(ctx context.Context, db Execer, src io.Reader) ([]Outcome, error) {
	delimiter := r.Delimiter

	var outcomes []Outcome
	var command strings.Builder

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSuffix(sc.Text(), "\r")
		trimmed := strings.TrimSpace(text)

		switch {
		case isComment(trimmed):
			if m := reDelimiter.FindStringSubmatch(trimmed); m != nil {
				delimiter = m[1]
			}
		case r.terminates(trimmed, delimiter):
			command.WriteString(text[:strings.LastIndex(text, delimiter)])
			stmt := strings.TrimSpace(command.String())
			command.Reset()
			if stmt == "" {
				continue
			}
			if err := ctx.Err(); err != nil {
				return outcomes, err
			}
			o, err := r.exec(ctx, db, line, stmt)
			outcomes = append(outcomes, o)
			if err != nil {
				return outcomes, err
			}
		case trimmed != "":
			command.WriteString(text)
			command.WriteString("\n")
		}
	}
	if err := sc.Err(); err != nil {
		return outcomes, fmt.Errorf("read line %d: %w", line+1, err)
	}

	if strings.TrimSpace(command.String()) != "" {
		return outcomes, fmt.Errorf("line %d: %w", line, ErrMissingTerminator)
	}
	return outcomes, nil
}

// exec runs one statement. The error is non-nil only when the runner stops
// on errors.
func (r Runner) exec(ctx context.Context, db Execer, line int, stmt string) (Outcome, error) {
	o := Outcome{Line: line, Statement: stmt}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		o.Err = err
		if r.StopOnError {
			return o, &StatementError{Line: line, Statement: stmt, Err: err}
		}
		r.Logger.Warn("statement failed", "line", line, "statement", stmt, "error", err)
		return o, nil
	}
	r.Logger.Debug("statement executed", "line", line)
	return o, nil
}

// terminates reports whether the trimmed line ends the current statement.
func (r Runner) terminates(trimmed, delimiter string) bool {
	if r.FullLineDelimiter {
		return trimmed == delimiter
	}
	return strings.Contains(trimmed, delimiter)
}

func isComment(trimmed string) bool {
	return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "--")
}
