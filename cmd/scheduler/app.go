package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/resource-scheduler/internal/application"
	"github.com/example/resource-scheduler/internal/config"
	"github.com/example/resource-scheduler/internal/persistence"
	"github.com/example/resource-scheduler/internal/persistence/memory"
	"github.com/example/resource-scheduler/internal/persistence/sqlite"
	"github.com/example/resource-scheduler/internal/persistence/sqlite/migration"
	"github.com/example/resource-scheduler/internal/planning"
	"github.com/example/resource-scheduler/internal/telemetry"
)

// storage is what both backends offer besides their repositories.
type storage interface {
	persistence.Transactor
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// app wires the facades over one storage backend.
type app struct {
	storage      storage
	sqlite       *sqlite.Storage
	availability *application.AvailabilityFacade
	capabilities *application.CapabilityFacade
	planning     *application.PlanningFacade
	metrics      *telemetry.Metrics
}

var errMemoryStorage = errors.New(`this command needs a SQLite database, not "memory"`)

// openApp opens the configured storage, applies migrations and builds the facades.
func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{metrics: telemetry.NewMetrics()}

	var (
		avail     persistence.AvailabilityRepository
		readModel persistence.AvailabilityReadModel
		caps      persistence.CapabilityRepository
		projects  persistence.ProjectRepository
	)
	if cfg.UsesMemoryStorage() {
		store := memory.New()
		a.storage = store
		avail, readModel, caps, projects = store.Availability, store.ReadModel, store.Capabilities, store.Projects
	} else {
		store, err := sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		a.storage = store
		a.sqlite = store
		avail, readModel, caps, projects = store.Availability, store.ReadModel, store.Capabilities, store.Projects
	}

	if err := a.storage.Migrate(ctx); err != nil {
		_ = a.storage.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	a.availability = application.NewAvailabilityFacadeWithLogger(a.storage, avail, readModel, cfg.Segment(), logger).
		WithRecorder(a.metrics)
	a.capabilities = application.NewCapabilityFacadeWithLogger(a.storage, caps, a.availability, logger).
		WithRecorder(a.metrics)
	a.planning = application.NewPlanningFacadeWithLogger(a.storage, projects, planning.NewProjectID, time.Now, logger).
		WithRecorder(a.metrics)
	return a, nil
}

func (a *app) Close() error {
	return a.storage.Close()
}
