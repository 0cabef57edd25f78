// Package database opens the node's local SQLite file and keeps its schema
// current.
//
// The node writes little (diagnostics and relay history) and reads only for
// the status API, so the connection pool is a single connection with WAL
// enabled by default. Schema changes ship as numbered SQL files embedded in
// the binary (see the migrations package) and are applied in order at
// startup, each in its own transaction.
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
package database
