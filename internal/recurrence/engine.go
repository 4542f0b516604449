// Package recurrence expands recurring windows, such as weekday working
// hours, into concrete time slots over a bounded period. Rules are not
// stored anywhere; callers persist only the slots.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/resource-scheduler/internal/timeslot"
)

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily generates a window every day, optionally filtered by weekday.
	FrequencyDaily
	// FrequencyWeekly generates windows on the selected weekdays only.
	FrequencyWeekly
)

// ParseFrequency accepts "daily" or "weekly".
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	}
	return FrequencyUnspecified, fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
}

// ParseWeekday accepts English weekday names, full or three letters.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("recurrence: unknown weekday %q", s)
}

// Rule describes a window repeating on calendar days of Location.
type Rule struct {
	Frequency Frequency
	Weekdays  []time.Weekday
	// StartOfDay is the offset from local midnight at which each window opens.
	StartOfDay time.Duration
	Duration   time.Duration
	// Location defaults to UTC.
	Location *time.Location
}

var (
	// ErrInvalidFrequency indicates the recurrence frequency is not supported.
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	// ErrInvalidDuration indicates the window length is not in (0, 24h].
	ErrInvalidDuration = errors.New("recurrence: window duration must be positive and at most 24h")
	// ErrInvalidStart indicates StartOfDay is outside [0, 24h).
	ErrInvalidStart = errors.New("recurrence: start of day must be within one day")
	// ErrNoWeekdays indicates a weekly rule without weekdays.
	ErrNoWeekdays = errors.New("recurrence: weekly rules need at least one weekday")
)

// Validate checks the rule can be expanded.
func (r Rule) Validate() error {
	switch r.Frequency {
	case FrequencyDaily:
	case FrequencyWeekly:
		if len(r.Weekdays) == 0 {
			return ErrNoWeekdays
		}
	default:
		return ErrInvalidFrequency
	}
	if r.Duration <= 0 || r.Duration > 24*time.Hour {
		return ErrInvalidDuration
	}
	if r.StartOfDay < 0 || r.StartOfDay >= 24*time.Hour {
		return ErrInvalidStart
	}
	return nil
}

// Expand returns the windows of rule that lie entirely inside within, in
// chronological order and in UTC. Days are stepped on the calendar of the
// rule's location, so a 09:00 window stays at 09:00 local time across DST
// changes.
func Expand(rule Rule, within timeslot.TimeSlot) ([]timeslot.TimeSlot, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if within.IsEmpty() {
		return nil, nil
	}
	loc := rule.Location
	if loc == nil {
		loc = time.UTC
	}

	weekdays := make(map[time.Weekday]struct{}, len(rule.Weekdays))
	for _, day := range rule.Weekdays {
		weekdays[day] = struct{}{}
	}

	// Start one day early so a window opening the previous local day is not missed.
	y, m, d := within.From.In(loc).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, -1)

	var out []timeslot.TimeSlot
	for !day.After(within.To) {
		if includes(rule.Frequency, weekdays, day.Weekday()) {
			start := day.Add(rule.StartOfDay)
			window := timeslot.TimeSlot{From: start.UTC(), To: start.Add(rule.Duration).UTC()}
			if window.Within(within) {
				out = append(out, window)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return out, nil
}

func includes(freq Frequency, weekdays map[time.Weekday]struct{}, day time.Weekday) bool {
	if freq == FrequencyDaily && len(weekdays) == 0 {
		return true
	}
	_, ok := weekdays[day]
	return ok
}
