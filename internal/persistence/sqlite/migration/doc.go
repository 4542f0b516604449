// Package migration applies versioned SQL files to a SQLite database.
//
// Files are read from an fs.FS and must be named {version}_{description}.sql.
// Applied versions are tracked in the schema_migrations table; each file runs
// in its own transaction together with its bookkeeping row.
package migration
