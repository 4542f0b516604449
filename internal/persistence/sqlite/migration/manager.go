package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

// Manager applies pending migrations in version order.
type Manager struct {
	scanner  FileScanner
	executor Executor
	fsys     fs.FS
	dir      string
	logger   *slog.Logger
}

// NewManager wires a scanner and executor to a migration source.
func NewManager(scanner FileScanner, executor Executor, fsys fs.FS, dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  scanner,
		executor: executor,
		fsys:     fsys,
		dir:      dir,
		logger:   logger.With("component", "migration"),
	}
}

// RunMigrations applies every pending migration. It stops at the first failure;
// migrations applied before it stay applied.
func (m *Manager) RunMigrations(ctx context.Context) error {
	start := time.Now()

	status, err := m.Status(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to determine migration status", "error", err)
		return err
	}
	if len(status.Pending) == 0 {
		m.logger.InfoContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations",
		"current_version", status.CurrentVersion,
		"pending", len(status.Pending),
	)

	for _, migration := range status.Pending {
		logger := m.logger.With("version", migration.Version, "file", migration.FilePath)
		elapsed, err := m.executor.ExecuteMigration(ctx, migration)
		if err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return &MigrationError{
				Version:   migration.Version,
				FilePath:  migration.FilePath,
				Operation: "execute",
				Err:       fmt.Errorf("%w: %w", ErrMigrationFailed, err),
			}
		}
		logger.InfoContext(ctx, "migration applied", "description", migration.Description, "duration", elapsed)
	}

	m.logger.InfoContext(ctx, "migrations complete", "count", len(status.Pending), "duration", time.Since(start))
	return nil
}

// Status compares the migration source with schema_migrations. Applied
// versions missing from the source or with a different checksum are errors.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}

	available, err := m.scanner.ScanMigrations(m.fsys, m.dir)
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return Status{}, err
	}

	byVersion := make(map[string]Migration, len(available))
	for _, mig := range available {
		byVersion[mig.Version] = mig
	}

	done := make(map[string]bool, len(applied))
	status := Status{Applied: applied}
	for _, a := range applied {
		mig, ok := byVersion[a.Version]
		if !ok {
			return Status{}, &MigrationError{Version: a.Version, Operation: "verify applied", Err: ErrUnknownApplied}
		}
		if a.Checksum != "" && a.Checksum != mig.Checksum {
			return Status{}, &MigrationError{Version: a.Version, FilePath: mig.FilePath, Operation: "verify checksum", Err: ErrChecksumMismatch}
		}
		done[a.Version] = true
		status.CurrentVersion = a.Version
	}

	for _, mig := range available {
		if !done[mig.Version] {
			status.Pending = append(status.Pending, mig)
		}
	}
	return status, nil
}
