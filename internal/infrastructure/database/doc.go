// Package database provides SQLite connectivity and schema migrations for
// PMFlow Core.
//
// This package manages:
//   - Opening the database with foreign keys on and optional WAL mode
//   - A single-connection pool (SQLite has one writer)
//   - Versioned up/down migrations read from an fs.FS
//   - Transaction and health-check helpers
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database
