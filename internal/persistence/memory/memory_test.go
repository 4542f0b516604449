package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/capability"
	"github.com/example/resource-scheduler/internal/planning"
	"github.com/example/resource-scheduler/internal/timeslot"
)

var day = time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)

func slot(fromHour, fromMinute, toHour, toMinute int) timeslot.TimeSlot {
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }
	return timeslot.MustNew(at(fromHour, fromMinute), at(toHour, toMinute))
}

func grouped(t *testing.T, id availability.ResourceID, slot timeslot.TimeSlot) availability.ResourceGroupedAvailability {
	t.Helper()
	group, err := availability.Of(id, slot, "", availability.DefaultSegment())
	if err != nil {
		t.Fatalf("availability.Of failed: %v", err)
	}
	return group
}

func TestWithinTransaction_RollsBackTouchedKeysOnly(t *testing.T) {
	ctx := context.Background()
	store := New()
	morning := slot(9, 0, 10, 0)

	if err := store.Availability.SaveNewGrouped(ctx, grouped(t, "kept", morning)); err != nil {
		t.Fatalf("SaveNewGrouped failed: %v", err)
	}
	original := planning.NewProject("p-1", "original", day)
	if err := store.Projects.Save(ctx, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	errBoom := errors.New("boom")
	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := store.Availability.SaveNewGrouped(ctx, grouped(t, "inserted", morning)); err != nil {
			return err
		}
		renamed := original
		renamed.Name = "renamed"
		if err := store.Projects.Save(ctx, renamed); err != nil {
			return err
		}
		// A second write to the same key must still roll back to the first value.
		renamed.Name = "renamed twice"
		if err := store.Projects.Save(ctx, renamed); err != nil {
			return err
		}
		entry := capability.NewAllocatableCapability("alice", capability.Skill("go"), morning)
		if err := store.Capabilities.SaveAll(ctx, []capability.AllocatableCapability{entry}); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}

	rows, _ := store.Availability.LoadAllWithinSlot(ctx, "inserted", morning)
	if len(rows) != 0 {
		t.Fatalf("expected inserted rows to be removed, got %d", len(rows))
	}
	rows, _ = store.Availability.LoadAllWithinSlot(ctx, "kept", morning)
	if len(rows) != 4 {
		t.Fatalf("expected untouched rows to survive, got %d", len(rows))
	}
	p, err := store.Projects.Get(ctx, "p-1")
	if err != nil || p.Name != "original" {
		t.Fatalf("expected original project, got %q err=%v", p.Name, err)
	}
	entries, _ := store.Capabilities.FindByResource(ctx, "alice")
	if len(entries) != 0 {
		t.Fatalf("expected capability insert to be undone, got %d", len(entries))
	}
	if store.journal != nil {
		t.Fatal("expected the journal to be released after the unit of work")
	}
}

func TestWithinTransaction_CommitKeepsChanges(t *testing.T) {
	ctx := context.Background()
	store := New()
	window := slot(9, 0, 9, 30)

	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		return store.Availability.SaveNewGrouped(ctx, grouped(t, "r1", window))
	})
	if err != nil {
		t.Fatalf("WithinTransaction failed: %v", err)
	}
	rows, _ := store.Availability.LoadAllWithinSlot(ctx, "r1", window)
	if len(rows) != 2 {
		t.Fatalf("expected committed rows, got %d", len(rows))
	}
}

func TestWithinTransaction_PanicRollsBack(t *testing.T) {
	ctx := context.Background()
	store := New()
	window := slot(9, 0, 9, 15)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = store.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := store.Availability.SaveNewGrouped(ctx, grouped(t, "r1", window)); err != nil {
				return err
			}
			panic("interrupted")
		})
	}()

	rows, _ := store.Availability.LoadAllWithinSlot(ctx, "r1", window)
	if len(rows) != 0 {
		t.Fatalf("expected panic to undo the insert, got %d rows", len(rows))
	}
}

func TestWithinTransaction_ForeignContextDoesNotJoin(t *testing.T) {
	ctx := context.Background()
	first, second := New(), New()
	window := slot(9, 0, 9, 15)

	err := first.WithinTransaction(ctx, func(ctx context.Context) error {
		return second.Availability.SaveNewGrouped(ctx, grouped(t, "r1", window))
	})
	if err != nil {
		t.Fatalf("WithinTransaction failed: %v", err)
	}
	rows, _ := second.Availability.LoadAllWithinSlot(ctx, "r1", window)
	if len(rows) != 1 {
		t.Fatalf("expected the second store to commit its own write, got %d rows", len(rows))
	}
}
