package planning

import (
	"time"

	"github.com/google/uuid"

	"github.com/example/resource-scheduler/internal/timeslot"
)

// ProjectID identifies a project.
type ProjectID string

// NewProjectID returns a random identifier.
func NewProjectID() ProjectID {
	return ProjectID(uuid.NewString())
}

// Project groups ordered stages, project-wide demands and the current schedule.
type Project struct {
	ID             ProjectID
	Name           string
	Stages         []Stage
	Demands        Demands
	CriticalStages map[string]timeslot.TimeSlot
	Schedule       Schedule
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewProject returns an empty project.
func NewProject(id ProjectID, name string, now time.Time) Project {
	return Project{
		ID:             id,
		Name:           name,
		CriticalStages: map[string]timeslot.TimeSlot{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// DefineStages replaces the stage list. Pinned slots and the schedule are reset.
func (p Project) DefineStages(stages ...Stage) (Project, error) {
	if err := ValidateStages(stages); err != nil {
		return p, err
	}
	p.Stages = append([]Stage(nil), stages...)
	p.CriticalStages = map[string]timeslot.TimeSlot{}
	p.Schedule = EmptySchedule()
	return p, nil
}

// AddDemands appends project-wide demands.
func (p Project) AddDemands(demands ...Demand) Project {
	p.Demands = p.Demands.With(demands...)
	return p
}

// PinStage fixes a stage to a slot and replans around every pinned stage.
// The project is returned unchanged on error.
func (p Project) PinStage(name string, slot timeslot.TimeSlot) (Project, error) {
	return p.PinStages(map[string]timeslot.TimeSlot{name: slot})
}

// PinStages adds several pins at once and replans a single time.
func (p Project) PinStages(pins map[string]timeslot.TimeSlot) (Project, error) {
	pinned := make(map[string]timeslot.TimeSlot, len(p.CriticalStages)+len(pins))
	for k, v := range p.CriticalStages {
		pinned[k] = v
	}
	for k, v := range pins {
		pinned[k] = v
	}

	schedule, err := PlanCriticalPath(p.Stages, pinned)
	if err != nil {
		return p, err
	}
	p.CriticalStages = pinned
	p.Schedule = schedule
	return p, nil
}

// PlanFrom lays stages out back to back and clears pinned slots.
func (p Project) PlanFrom(start time.Time) (Project, error) {
	schedule, err := PlanFromStart(p.Stages, start)
	if err != nil {
		return p, err
	}
	p.CriticalStages = map[string]timeslot.TimeSlot{}
	p.Schedule = schedule
	return p, nil
}

// Stage looks a stage up by name.
func (p Project) Stage(name string) (Stage, bool) {
	for _, s := range p.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// ScheduledDemand is a demand placed in time by the schedule.
type ScheduledDemand struct {
	Stage  string
	Demand Demand
	Slot   timeslot.TimeSlot
}

// ScheduledDemands lists stage demands at their scheduled slots, followed by
// project-wide demands spanning the whole schedule.
func (p Project) ScheduledDemands() []ScheduledDemand {
	var out []ScheduledDemand
	for _, s := range p.Stages {
		slot, ok := p.Schedule.Slot(s.Name)
		if !ok {
			continue
		}
		for _, d := range s.Demands {
			out = append(out, ScheduledDemand{Stage: s.Name, Demand: d, Slot: slot})
		}
	}
	if span, ok := p.Schedule.Span(); ok {
		for _, d := range p.Demands {
			out = append(out, ScheduledDemand{Demand: d, Slot: span})
		}
	}
	return out
}
