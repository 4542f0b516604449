package testfixtures

import (
	"sync"
	"time"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/timeslot"
)

// Clock is a manual time source for facades and segment arithmetic in tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start.UTC()}
}

// Now returns the current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc adapts the clock to facades taking a func() time.Time.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// AdvanceSegments moves the clock forward by n segments.
func (c *Clock) AdvanceSegments(segment availability.Segment, n int) time.Time {
	return c.Advance(time.Duration(n) * segment.Duration())
}

// SlotFromNow returns [now, now+d).
func (c *Clock) SlotFromNow(d time.Duration) timeslot.TimeSlot {
	now := c.Now()
	return timeslot.MustNew(now, now.Add(d))
}

// CurrentSegment returns the segment-aligned slot containing now.
func (c *Clock) CurrentSegment(segment availability.Segment) timeslot.TimeSlot {
	now := c.Now()
	slot, err := availability.NormalizeToSegmentBoundaries(timeslot.TimeSlot{From: now, To: now.Add(time.Nanosecond)}, segment)
	if err != nil {
		panic(err)
	}
	return slot
}
