// Package timeslot provides the half-open time interval used throughout the scheduler.
package timeslot

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSlot is returned when a slot would not satisfy from < to.
var ErrInvalidSlot = errors.New("timeslot: from must be before to")

// TimeSlot is an immutable [From, To) interval stored in UTC.
type TimeSlot struct {
	From time.Time `json:"from" yaml:"from"`
	To   time.Time `json:"to" yaml:"to"`
}

// New validates and constructs a slot.
func New(from, to time.Time) (TimeSlot, error) {
	if !from.Before(to) {
		return TimeSlot{}, fmt.Errorf("%w: %s >= %s", ErrInvalidSlot, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return TimeSlot{From: from.UTC(), To: to.UTC()}, nil
}

// MustNew is New for fixtures and literals that are known to be valid.
func MustNew(from, to time.Time) TimeSlot {
	slot, err := New(from, to)
	if err != nil {
		panic(err)
	}
	return slot
}

// ForDay returns the UTC day starting at midnight of the given date.
func ForDay(year int, month time.Month, day int) TimeSlot {
	from := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return TimeSlot{From: from, To: from.AddDate(0, 0, 1)}
}

// Empty is the zero slot; it is never returned by New.
func Empty() TimeSlot {
	return TimeSlot{}
}

// IsEmpty reports whether the slot has no length.
func (s TimeSlot) IsEmpty() bool {
	return !s.From.Before(s.To)
}

// Duration returns To - From.
func (s TimeSlot) Duration() time.Duration {
	return s.To.Sub(s.From)
}

// Overlaps reports whether the two half-open intervals share any instant.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.From.Before(other.To) && other.From.Before(s.To)
}

// Within reports whether s lies fully inside other.
func (s TimeSlot) Within(other TimeSlot) bool {
	return !s.From.Before(other.From) && !s.To.After(other.To)
}

// Contains reports whether other lies fully inside s.
func (s TimeSlot) Contains(other TimeSlot) bool {
	return other.Within(s)
}

// Equal compares instants, ignoring location.
func (s TimeSlot) Equal(other TimeSlot) bool {
	return s.From.Equal(other.From) && s.To.Equal(other.To)
}

// CommonPartWith returns the intersection, or false when the slots do not overlap.
func (s TimeSlot) CommonPartWith(other TimeSlot) (TimeSlot, bool) {
	if !s.Overlaps(other) {
		return TimeSlot{}, false
	}
	from := s.From
	if other.From.After(from) {
		from = other.From
	}
	to := s.To
	if other.To.Before(to) {
		to = other.To
	}
	return TimeSlot{From: from, To: to}, true
}

// LeftoverAfterRemovingCommonWith returns the parts of both slots that are not shared.
// Disjoint slots are returned unchanged; equal slots leave nothing.
func (s TimeSlot) LeftoverAfterRemovingCommonWith(other TimeSlot) []TimeSlot {
	if s.Equal(other) {
		return nil
	}
	if !s.Overlaps(other) {
		return []TimeSlot{s, other}
	}

	var result []TimeSlot
	if s.From.Before(other.From) {
		result = append(result, TimeSlot{From: s.From, To: other.From})
	} else if other.From.Before(s.From) {
		result = append(result, TimeSlot{From: other.From, To: s.From})
	}
	if s.To.After(other.To) {
		result = append(result, TimeSlot{From: other.To, To: s.To})
	} else if other.To.After(s.To) {
		result = append(result, TimeSlot{From: s.To, To: other.To})
	}
	return result
}

// Stretch widens the slot by d on both ends.
func (s TimeSlot) Stretch(d time.Duration) TimeSlot {
	return TimeSlot{From: s.From.Add(-d), To: s.To.Add(d)}
}

// String renders the slot as [from, to).
func (s TimeSlot) String() string {
	return fmt.Sprintf("[%s, %s)", s.From.UTC().Format(time.RFC3339), s.To.UTC().Format(time.RFC3339))
}
