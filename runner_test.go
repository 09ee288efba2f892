// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package initscript_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	"github.com/mdhender/initscript"
)

func statements(outcomes []initscript.Outcome) []string {
	var stmts []string
	for _, o := range outcomes {
		stmts = append(stmts, o.Statement)
	}
	return stmts
}

// TestRunner_Statements tests statement splitting, comments and blank lines.
func TestRunner_Statements(t *testing.T) {
	ctx := context.Background()
	script := `-- leading comment
CREATE TABLE application (
    id   INTEGER PRIMARY KEY, -- inline comments stay
    name TEXT
);

// java style comment
INSERT INTO application VALUES (1, 'a'); INSERT INTO application VALUES (2, 'b');
  ;
DELETE FROM application WHERE id = 2;
`
	conn := &spyConn{}
	outcomes, err := initscript.Runner{Logger: quietLogger()}.Run(ctx, conn, strings.NewReader(script))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{
		"CREATE TABLE application (\n    id   INTEGER PRIMARY KEY, -- inline comments stay\n    name TEXT\n)",
		"INSERT INTO application VALUES (1, 'a'); INSERT INTO application VALUES (2, 'b')",
		"DELETE FROM application WHERE id = 2",
	}
	if diff := cmp.Diff(want, conn.stmts); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, statements(outcomes)); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}

	var lines []int
	for _, o := range outcomes {
		lines = append(lines, o.Line)
	}
	if diff := cmp.Diff([]int{5, 8, 10}, lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

// TestRunner_DelimiterDirective tests switching the delimiter from inside a script.
func TestRunner_DelimiterDirective(t *testing.T) {
	ctx := context.Background()
	script := `CREATE TABLE audit (msg TEXT);
-- @DELIMITER $$
CREATE TRIGGER application_insert AFTER INSERT ON application
BEGIN
    INSERT INTO audit VALUES ('insert');
END$$
// @delimiter ;
SELECT 1;
`
	conn := &spyConn{}
	if _, err := (initscript.Runner{Logger: quietLogger()}).Run(ctx, conn, strings.NewReader(script)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{
		"CREATE TABLE audit (msg TEXT)",
		"CREATE TRIGGER application_insert AFTER INSERT ON application\nBEGIN\n    INSERT INTO audit VALUES ('insert');\nEND",
		"SELECT 1",
	}
	if diff := cmp.Diff(want, conn.stmts); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

// TestRunner_FullLineDelimiter tests that only a line holding the delimiter ends a statement.
func TestRunner_FullLineDelimiter(t *testing.T) {
	ctx := context.Background()
	script := "SELECT 'a;b'\nGO\nSELECT 2\n  GO  \n"
	conn := &spyConn{}
	runner := initscript.Runner{Delimiter: "GO", FullLineDelimiter: true, Logger: quietLogger()}
	if _, err := runner.Run(ctx, conn, strings.NewReader(script)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"SELECT 'a;b'", "SELECT 2"}
	if diff := cmp.Diff(want, conn.stmts); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

// TestRunner_ContinueOnError tests that failures are recorded and skipped by default.
func TestRunner_ContinueOnError(t *testing.T) {
	ctx := context.Background()
	conn := &spyConn{failOn: "BAD"}
	script := "SELECT 1;\nBAD STATEMENT;\nSELECT 3;\n"

	outcomes, err := initscript.Runner{Logger: quietLogger()}.Run(ctx, conn, strings.NewReader(script))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for i, o := range outcomes {
		if failed := o.Err != nil; failed != (i == 1) {
			t.Errorf("outcome %d: unexpected error state %v", i, o.Err)
		}
	}
}

// TestRunner_StopOnError tests that the first failure is returned when configured.
func TestRunner_StopOnError(t *testing.T) {
	ctx := context.Background()
	conn := &spyConn{failOn: "BAD"}
	script := "SELECT 1;\nBAD STATEMENT;\nSELECT 3;\n"

	outcomes, err := initscript.Runner{StopOnError: true, Logger: quietLogger()}.Run(ctx, conn, strings.NewReader(script))
	var stmtErr *initscript.StatementError
	if !errors.As(err, &stmtErr) {
		t.Fatalf("expected StatementError, got %v", err)
	}
	if stmtErr.Line != 2 || stmtErr.Statement != "BAD STATEMENT" {
		t.Errorf("unexpected statement error: line %d, %q", stmtErr.Line, stmtErr.Statement)
	}
	if len(outcomes) != 2 {
		t.Errorf("expected 2 outcomes, got %d", len(outcomes))
	}
	if len(conn.stmts) != 2 {
		t.Errorf("expected 2 executed statements, got %d", len(conn.stmts))
	}
}

// TestRunner_MissingTerminator tests that trailing text without a delimiter is an error.
func TestRunner_MissingTerminator(t *testing.T) {
	ctx := context.Background()
	conn := &spyConn{}

	outcomes, err := initscript.Runner{Logger: quietLogger()}.Run(ctx, conn, strings.NewReader("SELECT 1;\nSELECT 2\n-- trailing comment\n"))
	if !errors.Is(err, initscript.ErrMissingTerminator) {
		t.Fatalf("expected ErrMissingTerminator, got %v", err)
	}
	if len(outcomes) != 1 {
		t.Errorf("expected 1 outcome, got %d", len(outcomes))
	}
}

// TestRunner_CRLF tests that Windows line endings are normalized.
func TestRunner_CRLF(t *testing.T) {
	ctx := context.Background()
	conn := &spyConn{}

	if _, err := (initscript.Runner{Logger: quietLogger()}).Run(ctx, conn, strings.NewReader("SELECT\r\n  1;\r\n")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff([]string{"SELECT\n  1"}, conn.stmts); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

// TestRunner_SendFullScript tests executing the script as one statement.
func TestRunner_SendFullScript(t *testing.T) {
	ctx := context.Background()
	conn := &spyConn{}
	script := "SELECT 1;\r\nSELECT 2;\r\n"

	outcomes, err := initscript.Runner{SendFullScript: true, Logger: quietLogger()}.Run(ctx, conn, strings.NewReader(script))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff([]string{"SELECT 1;\nSELECT 2;\n"}, conn.stmts); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
	if len(outcomes) != 1 {
		t.Errorf("expected 1 outcome, got %d", len(outcomes))
	}

	conn = &spyConn{failOn: "SELECT"}
	_, err = initscript.Runner{SendFullScript: true, Logger: quietLogger()}.Run(ctx, conn, strings.NewReader(script))
	var stmtErr *initscript.StatementError
	if !errors.As(err, &stmtErr) {
		t.Fatalf("expected StatementError, got %v", err)
	}
}

// TestRunner_Canceled tests that a canceled context stops execution.
func TestRunner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	conn := &spyConn{}

	_, err := initscript.Runner{Logger: quietLogger()}.Run(ctx, conn, strings.NewReader("SELECT 1;\n"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(conn.stmts) != 0 {
		t.Errorf("expected no statements, got %d", len(conn.stmts))
	}
}

// TestRunner_SQLite tests the runner against a real database.
func TestRunner_SQLite(t *testing.T) {
	ctx := context.Background()
	db := sqlx.MustConnect("sqlite", ":memory:")
	defer db.Close()
	db.SetMaxOpenConns(1)

	script := `CREATE TABLE service (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
INSERT INTO service VALUES (1, 'a');
INSERT INTO service VALUES (1, 'duplicate');
INSERT INTO service VALUES (2, 'b');
`
	outcomes, err := initscript.Runner{Logger: quietLogger()}.Run(ctx, db, strings.NewReader(script))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcomes[2].Err == nil {
		t.Error("expected duplicate key insert to fail")
	}

	var names []string
	if err := db.Select(&names, `SELECT name FROM service ORDER BY id`); err != nil {
		t.Fatalf("select service: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, names); diff != "" {
		t.Errorf("service names mismatch (-want +got):\n%s", diff)
	}
}
