// Copyright (c) 2026 Michael D Henderson. All rights reserved.

// Package initscript runs SQL initialization scripts against an embedded
// database exactly once at application startup.
//
// The package implements a best-effort boot sequence where:
//   - Initialization applies only when the database URL starts with "jdbc:h2"
//   - The URL is translated to an embedded SQLite database (memory or file)
//   - Scripts are listed in one ";"-separated string and run in order
//   - Statements auto-commit individually; a failing statement is logged and skipped
//   - A script that cannot be found aborts initialization
//
// # Basic Usage
//
//	//go:embed sql/*.sql
//	var resources embed.FS
//
//	func main() {
//	    result, err := initscript.Initialize(ctx, initscript.Config{
//	        URL:        "jdbc:h2:file:/var/lib/app/app.db",
//	        InitScript: "sql/schema.sql;file:/etc/app/seed.sql",
//	        Resources:  resources,
//	    })
//	}
//
// # Script References
//
// Each entry in the script list is either "file:<path>", opened from the
// filesystem, or a resource name, opened from Config.Resources. Empty entries
// are skipped.
//
// # Driver Support
//
// This package supports two SQLite drivers via build tags:
//   - modernc.org/sqlite (default, pure Go, no CGO)
//   - github.com/mattn/go-sqlite3 (CGO, use -tags mattn)
//
// The driver is registered by this package; applications do not need to
// import it themselves.
//
// # Configuration
//
// Key Config fields:
//   - URL: "jdbc:h2:mem:<name>", "jdbc:h2:file:<path>" or "jdbc:h2:<path>"
//   - InitScript: ";"-separated script references
//   - Resources: fs.FS used to resolve bundled resource names
//   - Runner: statement runner; the zero value continues past statement errors
//   - Opener: replaces the default SQLite opener (useful in tests)
package initscript
