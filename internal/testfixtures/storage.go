package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/resource-scheduler/internal/persistence"
	"github.com/example/resource-scheduler/internal/persistence/memory"
	"github.com/example/resource-scheduler/internal/persistence/sqlite"
	"github.com/example/resource-scheduler/internal/persistence/sqlite/migration"
)

// StorageHarness exposes one storage backend through the persistence
// contracts so tests can run unchanged against every backend.
type StorageHarness struct {
	Name         string
	Tx           persistence.Transactor
	Availability persistence.AvailabilityRepository
	ReadModel    persistence.AvailabilityReadModel
	Capabilities persistence.CapabilityRepository
	Projects     persistence.ProjectRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *StorageHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a harness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// also registers a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *StorageHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "scheduler.db")
	storage, err := sqlite.Open(migration.DefaultSQLiteConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &StorageHarness{
		Name:         "sqlite",
		Tx:           storage,
		Availability: storage.Availability,
		ReadModel:    storage.ReadModel,
		Capabilities: storage.Capabilities,
		Projects:     storage.Projects,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// NewMemoryHarness constructs a harness over fresh in-memory storage.
func NewMemoryHarness(tb testing.TB) *StorageHarness {
	tb.Helper()

	storage := memory.New()
	return &StorageHarness{
		Name:         "memory",
		Tx:           storage,
		Availability: storage.Availability,
		ReadModel:    storage.ReadModel,
		Capabilities: storage.Capabilities,
		Projects:     storage.Projects,
	}
}

// AllHarnesses returns one harness per backend.
func AllHarnesses(tb testing.TB) []*StorageHarness {
	tb.Helper()
	return []*StorageHarness{NewMemoryHarness(tb), NewSQLiteHarness(tb)}
}
