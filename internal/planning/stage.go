package planning

import (
	"sort"
	"time"

	"github.com/example/resource-scheduler/internal/capability"
	"github.com/example/resource-scheduler/internal/timeslot"
)

// Demand is a capability a stage needs while it runs.
type Demand struct {
	Capability capability.Capability `json:"capability" yaml:"capability"`
}

// DemandFor builds a demand.
func DemandFor(c capability.Capability) Demand {
	return Demand{Capability: c}
}

// Demands is an ordered list of demands. With returns a new list and never
// shares storage with the receiver.
type Demands []Demand

// DemandsOf copies the demands into a list.
func DemandsOf(demands ...Demand) Demands {
	return Demands(nil).With(demands...)
}

// With returns a new list with more appended.
func (d Demands) With(more ...Demand) Demands {
	if len(d)+len(more) == 0 {
		return nil
	}
	out := make(Demands, 0, len(d)+len(more))
	out = append(out, d...)
	return append(out, more...)
}

// Capabilities lists the demanded capabilities in order.
func (d Demands) Capabilities() []capability.Capability {
	out := make([]capability.Capability, 0, len(d))
	for _, demand := range d {
		out = append(out, demand.Capability)
	}
	return out
}

// Strings renders each demand as TYPE:name.
func (d Demands) Strings() []string {
	out := make([]string, 0, len(d))
	for _, demand := range d {
		out = append(out, demand.Capability.String())
	}
	return out
}

// Stage is a named piece of project work with a fixed duration.
type Stage struct {
	Name      string        `json:"name"`
	Duration  time.Duration `json:"duration"`
	DependsOn []string      `json:"depends_on,omitempty"`
	Demands   Demands       `json:"demands,omitempty"`
}

// NewStage returns a stage without duration.
func NewStage(name string) Stage {
	return Stage{Name: name}
}

// OfDuration returns a copy with the given duration.
func (s Stage) OfDuration(d time.Duration) Stage {
	s.DependsOn = append([]string(nil), s.DependsOn...)
	s.Demands = s.Demands.With()
	s.Duration = d
	return s
}

// WithDemands returns a copy with additional demands.
func (s Stage) WithDemands(demands ...Demand) Stage {
	s.DependsOn = append([]string(nil), s.DependsOn...)
	s.Demands = s.Demands.With(demands...)
	return s
}

// DependsOnStage returns a copy that depends on other.
func (s Stage) DependsOnStage(other string) Stage {
	s.Demands = s.Demands.With()
	s.DependsOn = append(append([]string(nil), s.DependsOn...), other)
	return s
}

// Schedule maps stage names to slots. It is immutable once built.
type Schedule struct {
	slots map[string]timeslot.TimeSlot
}

// NewSchedule copies the map into a schedule.
func NewSchedule(slots map[string]timeslot.TimeSlot) Schedule {
	copied := make(map[string]timeslot.TimeSlot, len(slots))
	for k, v := range slots {
		copied[k] = v
	}
	return Schedule{slots: copied}
}

// EmptySchedule has no stages.
func EmptySchedule() Schedule {
	return Schedule{}
}

// Slot returns the slot assigned to a stage.
func (s Schedule) Slot(stage string) (timeslot.TimeSlot, bool) {
	slot, ok := s.slots[stage]
	return slot, ok
}

// IsEmpty reports whether nothing is scheduled.
func (s Schedule) IsEmpty() bool {
	return len(s.slots) == 0
}

// AsMap returns a copy of the assignments.
func (s Schedule) AsMap() map[string]timeslot.TimeSlot {
	return NewSchedule(s.slots).slots
}

// StageSlot is one stage placed in time.
type StageSlot struct {
	Stage string
	Slot  timeslot.TimeSlot
}

// Dates lists every stage with its slot, ordered like Stages.
func (s Schedule) Dates() []StageSlot {
	names := s.Stages()
	out := make([]StageSlot, 0, len(names))
	for _, name := range names {
		out = append(out, StageSlot{Stage: name, Slot: s.slots[name]})
	}
	return out
}

// Stages lists scheduled stages ordered by start, then name.
func (s Schedule) Stages() []string {
	names := make([]string, 0, len(s.slots))
	for name := range s.slots {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := s.slots[names[i]], s.slots[names[j]]
		if !a.From.Equal(b.From) {
			return a.From.Before(b.From)
		}
		return names[i] < names[j]
	})
	return names
}

// Span returns the slot from the earliest start to the latest end.
func (s Schedule) Span() (timeslot.TimeSlot, bool) {
	if s.IsEmpty() {
		return timeslot.TimeSlot{}, false
	}
	var span timeslot.TimeSlot
	first := true
	for _, slot := range s.slots {
		if first {
			span = slot
			first = false
			continue
		}
		if slot.From.Before(span.From) {
			span.From = slot.From
		}
		if slot.To.After(span.To) {
			span.To = slot.To
		}
	}
	return span, true
}
