package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/resource-scheduler/internal/timeslot"
)

// DefaultSegmentDuration is the quantum used when no other is configured.
const DefaultSegmentDuration = 15 * time.Minute

// ErrInvalidSegment is returned for non-positive segment durations.
var ErrInvalidSegment = errors.New("availability: segment duration must be positive")

// Segment is the fixed-length unit every persisted slot is aligned to.
type Segment struct {
	d time.Duration
}

// NewSegment validates the duration.
func NewSegment(d time.Duration) (Segment, error) {
	if d <= 0 {
		return Segment{}, fmt.Errorf("%w: got %s", ErrInvalidSegment, d)
	}
	return Segment{d: d}, nil
}

// DefaultSegment returns the 15 minute segment.
func DefaultSegment() Segment {
	return Segment{d: DefaultSegmentDuration}
}

// Duration returns the segment length.
func (s Segment) Duration() time.Duration {
	return s.d
}

// NormalizeToSegmentBoundaries rounds slot.From down and slot.To up to segment
// boundaries. Boundaries are counted from the zero time in UTC, which for any
// duration that divides a day coincides with wall-clock alignment.
func NormalizeToSegmentBoundaries(slot timeslot.TimeSlot, segment Segment) (timeslot.TimeSlot, error) {
	d := segment.d
	if d <= 0 {
		return timeslot.TimeSlot{}, fmt.Errorf("%w: got %s", ErrInvalidSegment, d)
	}
	if slot.IsEmpty() {
		return timeslot.TimeSlot{}, fmt.Errorf("%w: %s", timeslot.ErrInvalidSlot, slot)
	}

	from := slot.From.UTC().Truncate(d)
	to := slot.To.UTC().Truncate(d)
	if to.Before(slot.To) {
		to = to.Add(d)
	}
	return timeslot.New(from, to)
}

// SplitIntoSegments normalizes the slot and cuts it into consecutive segment-sized slots.
func SplitIntoSegments(slot timeslot.TimeSlot, segment Segment) ([]timeslot.TimeSlot, error) {
	normalized, err := NormalizeToSegmentBoundaries(slot, segment)
	if err != nil {
		return nil, err
	}

	count := int(normalized.Duration() / segment.d)
	out := make([]timeslot.TimeSlot, 0, count)
	for from := normalized.From; from.Before(normalized.To); from = from.Add(segment.d) {
		out = append(out, timeslot.TimeSlot{From: from, To: from.Add(segment.d)})
	}
	return out, nil
}
