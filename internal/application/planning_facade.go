package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/resource-scheduler/internal/persistence"
	"github.com/example/resource-scheduler/internal/planning"
	"github.com/example/resource-scheduler/internal/simulation"
	"github.com/example/resource-scheduler/internal/timeslot"
)

// PlanningFacade stores projects and recomputes their schedules.
type PlanningFacade struct {
	tx          persistence.Transactor
	projects    persistence.ProjectRepository
	idGenerator func() planning.ProjectID
	now         func() time.Time
	logger      *slog.Logger
	recorder    OperationRecorder
}

// NewPlanningFacade constructs the facade with the default logger.
func NewPlanningFacade(tx persistence.Transactor, projects persistence.ProjectRepository, idGenerator func() planning.ProjectID, now func() time.Time) *PlanningFacade {
	return NewPlanningFacadeWithLogger(tx, projects, idGenerator, now, nil)
}

// NewPlanningFacadeWithLogger constructs the facade with a specified logger.
func NewPlanningFacadeWithLogger(tx persistence.Transactor, projects persistence.ProjectRepository, idGenerator func() planning.ProjectID, now func() time.Time, logger *slog.Logger) *PlanningFacade {
	if idGenerator == nil {
		idGenerator = planning.NewProjectID
	}
	if now == nil {
		now = time.Now
	}
	return &PlanningFacade{
		tx:          tx,
		projects:    projects,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
		recorder:    noopRecorder{},
	}
}

// WithRecorder sets the recorder observing every call and returns the facade.
func (f *PlanningFacade) WithRecorder(r OperationRecorder) *PlanningFacade {
	f.recorder = defaultRecorder(r)
	return f
}

func (f *PlanningFacade) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, f.logger, "PlanningFacade", operation, attrs...)
}

// AddNewProject creates a project with the given stages.
func (f *PlanningFacade) AddNewProject(ctx context.Context, name string, stages ...planning.Stage) (project planning.Project, err error) {
	if f == nil {
		return planning.Project{}, fmt.Errorf("PlanningFacade is nil")
	}

	start := f.now()
	logger := f.loggerWith(ctx, "AddNewProject", "name", name)
	defer func() {
		f.recorder.RecordOperation("planning", "add_project", outcome(true, err), f.now().Sub(start))
		if err != nil {
			logger.ErrorContext(ctx, "failed to add project", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("project_id", project.ID).InfoContext(ctx, "project added")
	}()

	if strings.TrimSpace(name) == "" {
		err = &ValidationError{FieldErrors: map[string]string{"name": "name is required"}}
		return
	}

	project = planning.NewProject(f.idGenerator(), strings.TrimSpace(name), f.now())
	if len(stages) > 0 {
		project, err = project.DefineStages(stages...)
		if err != nil {
			err = mapDomainError(err)
			return
		}
	}

	err = f.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return mapRepoError(f.projects.Save(ctx, project))
	})
	return
}

// DefineProjectStages replaces the stages. Pinned stages and the schedule are reset.
func (f *PlanningFacade) DefineProjectStages(ctx context.Context, id planning.ProjectID, stages ...planning.Stage) (planning.Project, error) {
	return f.update(ctx, "DefineProjectStages", id, func(p planning.Project) (planning.Project, error) {
		return p.DefineStages(stages...)
	})
}

// AddDemands appends project-wide demands.
func (f *PlanningFacade) AddDemands(ctx context.Context, id planning.ProjectID, demands ...planning.Demand) (planning.Project, error) {
	return f.update(ctx, "AddDemands", id, func(p planning.Project) (planning.Project, error) {
		for i, d := range demands {
			if d.Capability.IsZero() {
				return p, &ValidationError{FieldErrors: map[string]string{fmt.Sprintf("demands[%d]", i): "capability is required"}}
			}
		}
		return p.AddDemands(demands...), nil
	})
}

// PlanCriticalStage pins one stage to slot and replans around every pinned stage.
func (f *PlanningFacade) PlanCriticalStage(ctx context.Context, id planning.ProjectID, stage string, slot timeslot.TimeSlot) (planning.Project, error) {
	return f.PlanCriticalStages(ctx, id, map[string]timeslot.TimeSlot{stage: slot})
}

// PlanCriticalStages pins several stages at once. Either all pins are
// applied or the stored project is left unchanged.
func (f *PlanningFacade) PlanCriticalStages(ctx context.Context, id planning.ProjectID, pins map[string]timeslot.TimeSlot) (planning.Project, error) {
	return f.update(ctx, "PlanCriticalStages", id, func(p planning.Project) (planning.Project, error) {
		if len(pins) == 0 {
			return p, &ValidationError{FieldErrors: map[string]string{"critical_stages": "at least one stage must be pinned"}}
		}
		vErr := &ValidationError{}
		for name, slot := range pins {
			validateSlot(vErr, "critical_stages."+name, slot)
		}
		if vErr.HasErrors() {
			return p, vErr
		}

		return p.PinStages(pins)
	})
}

// PlanFromStart lays stages out back to back from start, clearing pins.
func (f *PlanningFacade) PlanFromStart(ctx context.Context, id planning.ProjectID, start time.Time) (planning.Project, error) {
	return f.update(ctx, "PlanFromStart", id, func(p planning.Project) (planning.Project, error) {
		if start.IsZero() {
			return p, &ValidationError{FieldErrors: map[string]string{"start": "start is required"}}
		}
		return p.PlanFrom(start)
	})
}

// Load returns a stored project.
func (f *PlanningFacade) Load(ctx context.Context, id planning.ProjectID) (planning.Project, error) {
	p, err := f.projects.Get(ctx, id)
	if err != nil {
		return planning.Project{}, mapRepoError(err)
	}
	return p, nil
}

// List returns every stored project.
func (f *PlanningFacade) List(ctx context.Context) ([]planning.Project, error) {
	projects, err := f.projects.List(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return projects, nil
}

// ScheduledDemands places the project's demands on its current schedule.
func (f *PlanningFacade) ScheduledDemands(ctx context.Context, id planning.ProjectID) ([]planning.ScheduledDemand, error) {
	p, err := f.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.ScheduledDemands(), nil
}

// Feasibility simulates the project's scheduled demands against the
// capabilities that are currently free.
func (f *PlanningFacade) Feasibility(ctx context.Context, id planning.ProjectID, capabilities *CapabilityFacade, extra simulation.SimulatedCapabilities) (SimulationResult, error) {
	scheduled, err := f.ScheduledDemands(ctx, id)
	if err != nil {
		return SimulationResult{}, err
	}
	demands := make([]simulation.Demand, 0, len(scheduled))
	for _, sd := range scheduled {
		demands = append(demands, simulation.Demand{Capability: sd.Demand.Capability, Slot: sd.Slot})
	}
	return capabilities.Simulate(ctx, demands, extra)
}

func (f *PlanningFacade) update(ctx context.Context, operation string, id planning.ProjectID, change func(planning.Project) (planning.Project, error)) (project planning.Project, err error) {
	if f == nil {
		return planning.Project{}, fmt.Errorf("PlanningFacade is nil")
	}

	start := f.now()
	logger := f.loggerWith(ctx, operation, "project_id", id)
	defer func() {
		f.recorder.RecordOperation("planning", toSnake(operation), outcome(true, err), f.now().Sub(start))
		if err != nil {
			logger.ErrorContext(ctx, "failed to update project", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "project updated", "stages", len(project.Stages), "scheduled", !project.Schedule.IsEmpty())
	}()

	err = f.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := f.projects.Get(ctx, id)
		if err != nil {
			return mapRepoError(err)
		}
		updated, err := change(current)
		if err != nil {
			return mapDomainError(err)
		}
		updated.UpdatedAt = f.now()
		if err := f.projects.Save(ctx, updated); err != nil {
			return mapRepoError(err)
		}
		project = updated
		return nil
	})
	return
}

func toSnake(operation string) string {
	var b strings.Builder
	for i, r := range operation {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
