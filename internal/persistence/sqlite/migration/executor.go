package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteExecutor applies migrations against a *sql.DB.
type SQLiteExecutor struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteExecutor returns an executor for db.
func NewSQLiteExecutor(db *sql.DB) *SQLiteExecutor {
	return &SQLiteExecutor{db: db, now: time.Now}
}

// InitializeVersionTable creates schema_migrations if needed.
func (e *SQLiteExecutor) InitializeVersionTable(ctx context.Context) error {
	const stmt = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)`
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return &DatabaseError{Operation: "create schema_migrations", Err: err}
	}
	return nil
}

// ExecuteMigration runs every statement and the bookkeeping insert in one transaction.
func (e *SQLiteExecutor) ExecuteMigration(ctx context.Context, m Migration) (elapsed time.Duration, err error) {
	statements := splitStatements(m.SQL)
	if len(statements) == 0 {
		return 0, &MigrationError{Version: m.Version, FilePath: m.FilePath, Operation: "parse", Err: ErrInvalidMigrationFile}
	}

	start := e.now()
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &DatabaseError{Version: m.Version, Operation: "begin transaction", Err: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range statements {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			err = &DatabaseError{Version: m.Version, Operation: fmt.Sprintf("execute statement %d", i+1), Err: execErr}
			return 0, err
		}
	}

	elapsed = e.now().Sub(start)
	if _, execErr := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`,
		m.Version, e.now().UTC().Format(time.RFC3339), m.Checksum, elapsed.Milliseconds(),
	); execErr != nil {
		err = &DatabaseError{Version: m.Version, Operation: "record migration", Err: execErr}
		return 0, err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = &DatabaseError{Version: m.Version, Operation: "commit", Err: commitErr}
		return 0, err
	}
	return elapsed, nil
}

// GetAppliedVersions lists applied migrations ordered by version.
func (e *SQLiteExecutor) GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT version, applied_at, execution_time_ms, checksum
		FROM schema_migrations
		ORDER BY CAST(version AS INTEGER) ASC`)
	if err != nil {
		return nil, &DatabaseError{Operation: "query applied versions", Err: err}
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			a         AppliedMigration
			appliedAt string
			ms        int64
		)
		if err := rows.Scan(&a.Version, &appliedAt, &ms, &a.Checksum); err != nil {
			return nil, &DatabaseError{Operation: "scan applied version", Err: err}
		}
		a.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
		a.ExecutionTime = time.Duration(ms) * time.Millisecond
		applied = append(applied, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Operation: "iterate applied versions", Err: err}
	}
	return applied, nil
}
