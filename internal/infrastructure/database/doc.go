// Package database provides SQLite connectivity for NORA local.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations embedded in the binary
//   - Connection lifecycle and health checks
//
// All queries use parameterised statements and the database file is
// restricted to 0600.
//
// Usage:
//
//	db, err := database.Open(ctx, database.FromSettings(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and are applied oldest first.
package database
