package testfixtures

import (
	"testing"
	"time"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/timeslot"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)
	nowFn := clock.NowFunc()

	if updated := clock.Advance(90 * time.Minute); !updated.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", updated)
	}
	if got := nowFn(); !got.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("expected NowFunc to follow the clock, got %v", got)
	}

	clock.Set(start.Add(2 * time.Hour))
	if got := clock.Now(); !got.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("expected %v, got %v", start.Add(2*time.Hour), got)
	}
}

func TestClockSegments(t *testing.T) {
	segment := availability.DefaultSegment()
	clock := NewClock(time.Date(2024, time.March, 14, 9, 26, 0, 0, time.UTC))

	want := timeslot.MustNew(
		time.Date(2024, time.March, 14, 9, 15, 0, 0, time.UTC),
		time.Date(2024, time.March, 14, 9, 30, 0, 0, time.UTC),
	)
	if got := clock.CurrentSegment(segment); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	clock.AdvanceSegments(segment, 2)
	if got := clock.CurrentSegment(segment); !got.Equal(timeslot.MustNew(want.From.Add(30*time.Minute), want.To.Add(30*time.Minute))) {
		t.Fatalf("expected the segment two steps later, got %v", got)
	}
}

func TestClockSlotFromNow(t *testing.T) {
	clock := NewClock(time.Time{})

	slot := clock.SlotFromNow(time.Hour)
	if !slot.From.Equal(ReferenceTime()) || slot.Duration() != time.Hour {
		t.Fatalf("unexpected slot %v", slot)
	}
}
