package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/capability"
	"github.com/example/resource-scheduler/internal/persistence"
	"github.com/example/resource-scheduler/internal/persistence/sqlite/migration"
	"github.com/example/resource-scheduler/internal/planning"
	"github.com/example/resource-scheduler/internal/timeslot"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scheduler.db")
	storage, err := Open(migration.DefaultSQLiteConfig(path), nil)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}

	t.Cleanup(func() {
		_ = storage.Close()
	})

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return storage
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 2, hour, minute, 0, 0, time.UTC)
}

func newGroup(t *testing.T, resourceID availability.ResourceID, from, to time.Time) availability.ResourceGroupedAvailability {
	t.Helper()

	group, err := availability.Of(resourceID, timeslot.MustNew(from, to), "", availability.DefaultSegment())
	if err != nil {
		t.Fatalf("failed to build group: %v", err)
	}
	return group
}

func TestAvailabilityRepository_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	group := newGroup(t, "r1", at(9, 0), at(10, 0))
	if err := storage.Availability.SaveNewGrouped(ctx, group); err != nil {
		t.Fatalf("SaveNewGrouped failed: %v", err)
	}

	rows, err := storage.Availability.LoadAllWithinSlot(ctx, "r1", timeslot.MustNew(at(9, 0), at(10, 0)))
	if err != nil {
		t.Fatalf("LoadAllWithinSlot failed: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if !rows[0].Slot.From.Equal(at(9, 0)) || !rows[3].Slot.To.Equal(at(10, 0)) {
		t.Fatalf("unexpected slots: %v .. %v", rows[0].Slot, rows[3].Slot)
	}
	for _, row := range rows {
		if !row.Blockade.IsAvailable() || row.Version != 0 {
			t.Fatalf("expected fresh row, got %#v", row)
		}
	}

	partial, err := storage.Availability.LoadAllWithinSlot(ctx, "r1", timeslot.MustNew(at(9, 10), at(9, 50)))
	if err != nil {
		t.Fatalf("LoadAllWithinSlot failed: %v", err)
	}
	if len(partial) != 2 {
		t.Fatalf("expected only rows fully inside the window, got %d", len(partial))
	}
}

func TestAvailabilityRepository_SaveNewGrouped_Duplicate(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	if err := storage.Availability.SaveNewGrouped(ctx, newGroup(t, "r1", at(9, 0), at(9, 30))); err != nil {
		t.Fatalf("SaveNewGrouped failed: %v", err)
	}

	err := storage.Availability.SaveNewGrouped(ctx, newGroup(t, "r1", at(9, 15), at(10, 0)))
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	rows, err := storage.Availability.LoadAllWithinSlot(ctx, "r1", timeslot.MustNew(at(9, 0), at(10, 0)))
	if err != nil {
		t.Fatalf("LoadAllWithinSlot failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected the failed insert to leave no rows behind, got %d rows", len(rows))
	}
}

func TestAvailabilityRepository_SaveGroupedCheckingVersion(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	window := timeslot.MustNew(at(9, 0), at(10, 0))

	if err := storage.Availability.SaveNewGrouped(ctx, newGroup(t, "r1", at(9, 0), at(10, 0))); err != nil {
		t.Fatalf("SaveNewGrouped failed: %v", err)
	}

	load := func() availability.ResourceGroupedAvailability {
		rows, err := storage.Availability.LoadAllWithinSlot(ctx, "r1", window)
		if err != nil {
			t.Fatalf("LoadAllWithinSlot failed: %v", err)
		}
		return availability.NewGrouped(rows, window)
	}

	first := load()
	second := load()

	if !first.Block("alice") {
		t.Fatal("expected block to succeed")
	}
	ok, err := storage.Availability.SaveGroupedCheckingVersion(ctx, first)
	if err != nil || !ok {
		t.Fatalf("expected first save to win, ok=%v err=%v", ok, err)
	}

	if !second.Block("bob") {
		t.Fatal("expected block on stale copy to succeed in memory")
	}
	ok, err = storage.Availability.SaveGroupedCheckingVersion(ctx, second)
	if err != nil {
		t.Fatalf("SaveGroupedCheckingVersion failed: %v", err)
	}
	if ok {
		t.Fatal("expected stale save to be rejected")
	}

	current := load()
	if !current.BlockedEntirelyBy("alice") {
		t.Fatalf("expected alice to hold every row, got %#v", current.Resources())
	}
	for _, row := range current.Resources() {
		if row.Version != 1 {
			t.Fatalf("expected version 1, got %d", row.Version)
		}
	}
}

func TestAvailabilityRepository_StaleSaveWritesNothing(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	window := timeslot.MustNew(at(9, 0), at(10, 0))

	if err := storage.Availability.SaveNewGrouped(ctx, newGroup(t, "r1", at(9, 0), at(10, 0))); err != nil {
		t.Fatalf("SaveNewGrouped failed: %v", err)
	}
	rows, _ := storage.Availability.LoadAllWithinSlot(ctx, "r1", window)
	stale := availability.NewGrouped(rows, window)

	// bump the last segment only
	lastSlot := timeslot.MustNew(at(9, 45), at(10, 0))
	lastRows, _ := storage.Availability.LoadAllWithinSlot(ctx, "r1", lastSlot)
	tail := availability.NewGrouped(lastRows, lastSlot)
	tail.Block("bob")
	if ok, err := storage.Availability.SaveGroupedCheckingVersion(ctx, tail); err != nil || !ok {
		t.Fatalf("expected tail save to succeed, ok=%v err=%v", ok, err)
	}

	stale.Block("alice")
	ok, err := storage.Availability.SaveGroupedCheckingVersion(ctx, stale)
	if err != nil || ok {
		t.Fatalf("expected stale save to be rejected, ok=%v err=%v", ok, err)
	}

	calendar, err := storage.ReadModel.Load(ctx, "r1", window)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(calendar.TakenBy("alice")) != 0 {
		t.Fatalf("expected no row held by alice, got %v", calendar.TakenBy("alice"))
	}
	if got := calendar.AvailableSlots(); len(got) != 1 || !got[0].Equal(timeslot.MustNew(at(9, 0), at(9, 45))) {
		t.Fatalf("unexpected free slots: %v", got)
	}
}

func TestAvailabilityRepository_LoadAllByParentID(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	window := timeslot.MustNew(at(9, 0), at(9, 30))

	for _, child := range []availability.ResourceID{"c1", "c2"} {
		group, err := availability.Of(child, window, "parent", availability.DefaultSegment())
		if err != nil {
			t.Fatalf("Of failed: %v", err)
		}
		if err := storage.Availability.SaveNewGrouped(ctx, group); err != nil {
			t.Fatalf("SaveNewGrouped failed: %v", err)
		}
	}

	rows, err := storage.Availability.LoadAllByParentIDWithinSlot(ctx, "parent", window)
	if err != nil {
		t.Fatalf("LoadAllByParentIDWithinSlot failed: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0].ParentID != "parent" {
		t.Fatalf("expected parent id to round trip, got %q", rows[0].ParentID)
	}
}

func TestAvailabilityReadModel_LoadAll(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	window := timeslot.MustNew(at(9, 0), at(10, 0))

	if err := storage.Availability.SaveNewGrouped(ctx, newGroup(t, "r1", at(9, 0), at(10, 0))); err != nil {
		t.Fatalf("SaveNewGrouped failed: %v", err)
	}

	calendars, err := storage.ReadModel.LoadAll(ctx, []availability.ResourceID{"r1", "missing"}, window)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if got := calendars.Get("r1").AvailableSlots(); len(got) != 1 || !got[0].Equal(window) {
		t.Fatalf("unexpected r1 calendar: %v", got)
	}
	if got := calendars.Get("missing").AvailableSlots(); len(got) != 0 {
		t.Fatalf("expected empty calendar, got %v", got)
	}
}

func TestCapabilityRepository(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	java := capability.NewAllocatableCapability("r1", capability.Skill("java"), timeslot.MustNew(at(9, 0), at(12, 0)))
	excel := capability.NewAllocatableCapability("r1", capability.Skill("excel"), timeslot.MustNew(at(9, 0), at(12, 0)))
	if err := storage.Capabilities.SaveAll(ctx, []capability.AllocatableCapability{java, excel}); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	fetched, err := storage.Capabilities.FindByID(ctx, java.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if fetched.Capability != java.Capability || !fetched.Validity.Equal(java.Validity) {
		t.Fatalf("unexpected capability: %#v", fetched)
	}

	if _, err := storage.Capabilities.FindByID(ctx, "nope"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	tests := []struct {
		name string
		slot timeslot.TimeSlot
		want int
	}{
		{"inside", timeslot.MustNew(at(10, 0), at(11, 0)), 1},
		{"overlapping start", timeslot.MustNew(at(8, 0), at(9, 30)), 1},
		{"ending at validity start", timeslot.MustNew(at(8, 0), at(9, 0)), 0},
		{"starting at validity end", timeslot.MustNew(at(12, 0), at(13, 0)), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := storage.Capabilities.FindCapabilities(ctx, capability.Skill("java"), tt.slot)
			if err != nil {
				t.Fatalf("FindCapabilities failed: %v", err)
			}
			if len(found) != tt.want {
				t.Fatalf("expected %d results, got %d", tt.want, len(found))
			}
		})
	}

	byResource, err := storage.Capabilities.FindByResource(ctx, "r1")
	if err != nil {
		t.Fatalf("FindByResource failed: %v", err)
	}
	if len(byResource) != 2 {
		t.Fatalf("expected 2 capabilities, got %d", len(byResource))
	}
}

func TestProjectRepository(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	now := at(8, 0)
	project := planning.NewProject("p1", "Migration", now)
	project, err := project.DefineStages(
		planning.NewStage("design").OfDuration(2*time.Hour),
		planning.NewStage("build").OfDuration(3*time.Hour).WithDemands(planning.DemandFor(capability.Skill("go"))),
	)
	if err != nil {
		t.Fatalf("DefineStages failed: %v", err)
	}
	project, err = project.PlanFrom(at(9, 0))
	if err != nil {
		t.Fatalf("PlanFrom failed: %v", err)
	}

	if err := storage.Projects.Save(ctx, project); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	fetched, err := storage.Projects.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.Name != "Migration" || len(fetched.Stages) != 2 {
		t.Fatalf("unexpected project: %#v", fetched)
	}
	slot, ok := fetched.Schedule.Slot("build")
	if !ok || !slot.Equal(timeslot.MustNew(at(11, 0), at(14, 0))) {
		t.Fatalf("unexpected build slot: %v", slot)
	}
	if len(fetched.Stages[1].Demands) != 1 {
		t.Fatalf("expected demands to round trip, got %#v", fetched.Stages[1])
	}

	project.Name = "Renamed"
	project.UpdatedAt = now.Add(time.Hour)
	if err := storage.Projects.Save(ctx, project); err != nil {
		t.Fatalf("Save (update) failed: %v", err)
	}
	projects, err := storage.Projects.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(projects) != 1 || projects[0].Name != "Renamed" {
		t.Fatalf("unexpected projects: %#v", projects)
	}

	if _, err := storage.Projects.Get(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStorage_WithinTransaction_RollsBack(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	boom := errors.New("boom")

	err := storage.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := storage.Availability.SaveNewGrouped(ctx, newGroup(t, "r1", at(9, 0), at(10, 0))); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	rows, err := storage.Availability.LoadAllWithinSlot(ctx, "r1", timeslot.MustNew(at(9, 0), at(10, 0)))
	if err != nil {
		t.Fatalf("LoadAllWithinSlot failed: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected rollback to discard rows, got %d", len(rows))
	}
}

func TestStorage_MigrationStatus(t *testing.T) {
	storage := newTestStorage(t)

	status, err := storage.MigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("MigrationStatus failed: %v", err)
	}
	if status.CurrentVersion != "003" || len(status.Pending) != 0 {
		t.Fatalf("unexpected status: %#v", status)
	}
}
