// Package sqlite implements the persistence contracts on modernc.org/sqlite.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/resource-scheduler/internal/persistence"
	"github.com/example/resource-scheduler/internal/persistence/sqlite/migration"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// timeLayout has a fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Storage bundles every repository over one connection pool.
type Storage struct {
	pool         *ConnectionPool
	Availability *AvailabilityRepository
	ReadModel    *AvailabilityReadModel
	Capabilities *CapabilityRepository
	Projects     *ProjectRepository
	logger       *slog.Logger
}

var (
	_ persistence.Transactor             = (*Storage)(nil)
	_ persistence.AvailabilityRepository = (*AvailabilityRepository)(nil)
	_ persistence.AvailabilityReadModel  = (*AvailabilityReadModel)(nil)
	_ persistence.CapabilityRepository   = (*CapabilityRepository)(nil)
	_ persistence.ProjectRepository      = (*ProjectRepository)(nil)
)

// Open connects to the database described by cfg.
func Open(cfg migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := migration.Open(cfg)
	if err != nil {
		return nil, err
	}
	pool := NewConnectionPool(db)
	return &Storage{
		pool:         pool,
		Availability: NewAvailabilityRepository(pool),
		ReadModel:    NewAvailabilityReadModel(pool),
		Capabilities: NewCapabilityRepository(pool),
		Projects:     NewProjectRepository(pool),
		logger:       logger,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(
		migration.NewFileScanner(),
		migration.NewSQLiteExecutor(s.pool.DB()),
		migrationFiles,
		"sql",
		s.logger,
	)
	return manager.RunMigrations(ctx)
}

// MigrationStatus reports applied and pending migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (migration.Status, error) {
	manager := migration.NewManager(
		migration.NewFileScanner(),
		migration.NewSQLiteExecutor(s.pool.DB()),
		migrationFiles,
		"sql",
		s.logger,
	)
	return manager.Status(ctx)
}

// WithinTransaction implements persistence.Transactor.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.pool.WithinTransaction(ctx, fn)
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the database.
func (s *Storage) Close() error {
	return s.pool.Close()
}
