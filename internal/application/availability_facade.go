package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/persistence"
	"github.com/example/resource-scheduler/internal/recurrence"
	"github.com/example/resource-scheduler/internal/timeslot"
)

// AvailabilityFacade owns the load, mutate and version-checked save cycle for
// availability rows. Every call normalizes its slot to segment boundaries.
type AvailabilityFacade struct {
	tx        persistence.Transactor
	repo      persistence.AvailabilityRepository
	readModel persistence.AvailabilityReadModel
	segment   availability.Segment
	now       func() time.Time
	logger    *slog.Logger
	recorder  OperationRecorder
}

// NewAvailabilityFacade constructs the facade with the default logger.
func NewAvailabilityFacade(tx persistence.Transactor, repo persistence.AvailabilityRepository, readModel persistence.AvailabilityReadModel, segment availability.Segment) *AvailabilityFacade {
	return NewAvailabilityFacadeWithLogger(tx, repo, readModel, segment, nil)
}

// NewAvailabilityFacadeWithLogger constructs the facade with a specified logger.
func NewAvailabilityFacadeWithLogger(tx persistence.Transactor, repo persistence.AvailabilityRepository, readModel persistence.AvailabilityReadModel, segment availability.Segment, logger *slog.Logger) *AvailabilityFacade {
	if segment.Duration() <= 0 {
		segment = availability.DefaultSegment()
	}
	return &AvailabilityFacade{
		tx:        tx,
		repo:      repo,
		readModel: readModel,
		segment:   segment,
		now:       time.Now,
		logger:    defaultLogger(logger),
		recorder:  noopRecorder{},
	}
}

// WithRecorder sets the recorder observing every call and returns the facade.
func (f *AvailabilityFacade) WithRecorder(r OperationRecorder) *AvailabilityFacade {
	f.recorder = defaultRecorder(r)
	return f
}

// Segment returns the segment every slot is normalized to.
func (f *AvailabilityFacade) Segment() availability.Segment {
	return f.segment
}

func (f *AvailabilityFacade) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, f.logger, "AvailabilityFacade", operation, attrs...)
}

func (f *AvailabilityFacade) normalize(field string, slot timeslot.TimeSlot) (timeslot.TimeSlot, error) {
	vErr := &ValidationError{}
	validateSlot(vErr, field, slot)
	if vErr.HasErrors() {
		return timeslot.TimeSlot{}, vErr
	}
	normalized, err := availability.NormalizeToSegmentBoundaries(slot, f.segment)
	if err != nil {
		return timeslot.TimeSlot{}, mapDomainError(err)
	}
	return normalized, nil
}

// CreateResourceSlots creates one free row per segment covering slot. It
// fails with ErrAlreadyExists if any covered segment already has a row, in
// which case nothing is created.
func (f *AvailabilityFacade) CreateResourceSlots(ctx context.Context, resourceID availability.ResourceID, slot timeslot.TimeSlot, parentID availability.ResourceID) (err error) {
	if f == nil {
		return fmt.Errorf("AvailabilityFacade is nil")
	}

	start := f.now()
	logger := f.loggerWith(ctx, "CreateResourceSlots",
		"resource_id", resourceID,
		"slot", slot.String(),
	)
	defer func() {
		f.recorder.RecordOperation("availability", "create_slots", outcome(true, err), f.now().Sub(start))
		if err != nil {
			logger.ErrorContext(ctx, "failed to create resource slots", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "resource slots created")
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(string(resourceID)) == "" {
		vErr.add("resource_id", "resource id is required")
	}
	validateSlot(vErr, "slot", slot)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var group availability.ResourceGroupedAvailability
	group, err = availability.Of(resourceID, slot, parentID, f.segment)
	if err != nil {
		err = mapDomainError(err)
		return
	}

	err = f.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return mapRepoError(f.repo.SaveNewGrouped(ctx, group))
	})
	return
}

// CreateRecurringResourceSlots creates free rows for every window of rule
// lying inside within, all in one transaction. It returns the number of
// windows created. If any window collides with existing rows nothing is
// created and ErrAlreadyExists is returned.
func (f *AvailabilityFacade) CreateRecurringResourceSlots(ctx context.Context, resourceID availability.ResourceID, rule recurrence.Rule, within timeslot.TimeSlot, parentID availability.ResourceID) (created int, err error) {
	if f == nil {
		return 0, fmt.Errorf("AvailabilityFacade is nil")
	}

	start := f.now()
	logger := f.loggerWith(ctx, "CreateRecurringResourceSlots",
		"resource_id", resourceID,
		"within", within.String(),
	)
	defer func() {
		f.recorder.RecordOperation("availability", "create_recurring_slots", outcome(true, err), f.now().Sub(start))
		if err != nil {
			logger.ErrorContext(ctx, "failed to create recurring slots", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "recurring slots created", "windows", created)
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(string(resourceID)) == "" {
		vErr.add("resource_id", "resource id is required")
	}
	validateSlot(vErr, "within", within)
	if ruleErr := rule.Validate(); ruleErr != nil {
		vErr.add("rule", ruleErr.Error())
	}
	if vErr.HasErrors() {
		return 0, vErr
	}

	windows, err := recurrence.Expand(rule, within)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	groups := make([]availability.ResourceGroupedAvailability, 0, len(windows))
	for _, window := range windows {
		group, groupErr := availability.Of(resourceID, window, parentID, f.segment)
		if groupErr != nil {
			return 0, mapDomainError(groupErr)
		}
		groups = append(groups, group)
	}

	err = f.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, group := range groups {
			if saveErr := f.repo.SaveNewGrouped(ctx, group); saveErr != nil {
				return mapRepoError(saveErr)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(groups), nil
}

// Block takes every segment of slot for owner. It reports false when another
// owner holds part of the slot, when part of the slot has no rows, or when a
// concurrent writer changed a row after it was loaded.
func (f *AvailabilityFacade) Block(ctx context.Context, resourceID availability.ResourceID, slot timeslot.TimeSlot, owner availability.Owner) (bool, error) {
	return f.mutate(ctx, "Block", resourceID, slot, owner, (*availability.ResourceGroupedAvailability).Block)
}

// Release frees every segment of slot held by owner.
func (f *AvailabilityFacade) Release(ctx context.Context, resourceID availability.ResourceID, slot timeslot.TimeSlot, owner availability.Owner) (bool, error) {
	return f.mutate(ctx, "Release", resourceID, slot, owner, (*availability.ResourceGroupedAvailability).Release)
}

// Disable marks every segment of slot unusable on behalf of owner, overriding blocks.
func (f *AvailabilityFacade) Disable(ctx context.Context, resourceID availability.ResourceID, slot timeslot.TimeSlot, owner availability.Owner) (bool, error) {
	return f.mutate(ctx, "Disable", resourceID, slot, owner, (*availability.ResourceGroupedAvailability).Disable)
}

// Enable lifts a disable placed by the same owner.
func (f *AvailabilityFacade) Enable(ctx context.Context, resourceID availability.ResourceID, slot timeslot.TimeSlot, owner availability.Owner) (bool, error) {
	return f.mutate(ctx, "Enable", resourceID, slot, owner, (*availability.ResourceGroupedAvailability).Enable)
}

func (f *AvailabilityFacade) mutate(
	ctx context.Context,
	operation string,
	resourceID availability.ResourceID,
	slot timeslot.TimeSlot,
	owner availability.Owner,
	apply func(*availability.ResourceGroupedAvailability, availability.Owner) bool,
) (ok bool, err error) {
	if f == nil {
		return false, fmt.Errorf("AvailabilityFacade is nil")
	}

	start := f.now()
	logger := f.loggerWith(ctx, operation,
		"resource_id", resourceID,
		"owner", owner,
		"slot", slot.String(),
	)
	defer func() {
		f.recorder.RecordOperation("availability", strings.ToLower(operation), outcome(ok, err), f.now().Sub(start))
		switch {
		case err != nil:
			logger.ErrorContext(ctx, "availability change failed", "error", err, "error_kind", ErrorKind(err))
		case !ok:
			logger.InfoContext(ctx, "availability change rejected")
		default:
			logger.InfoContext(ctx, "availability changed")
		}
	}()

	if owner.IsNone() {
		err = &ValidationError{FieldErrors: map[string]string{"owner": "owner is required"}}
		return
	}

	var normalized timeslot.TimeSlot
	normalized, err = f.normalize("slot", slot)
	if err != nil {
		return
	}

	err = f.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		rows, err := f.repo.LoadAllWithinSlot(ctx, resourceID, normalized)
		if err != nil {
			return err
		}
		group := availability.NewGrouped(rows, normalized)
		if !apply(&group, owner) {
			ok = false
			return nil
		}
		ok, err = f.repo.SaveGroupedCheckingVersion(ctx, group)
		return err
	})
	if err != nil {
		ok = false
		err = mapRepoError(err)
	}
	return
}

// Find loads the grouped rows of a resource within the normalized window.
func (f *AvailabilityFacade) Find(ctx context.Context, resourceID availability.ResourceID, within timeslot.TimeSlot) (availability.ResourceGroupedAvailability, error) {
	normalized, err := f.normalize("within", within)
	if err != nil {
		return availability.None(), err
	}
	rows, err := f.repo.LoadAllWithinSlot(ctx, resourceID, normalized)
	if err != nil {
		return availability.None(), mapRepoError(err)
	}
	return availability.NewGrouped(rows, normalized), nil
}

// FindByParentID loads the rows of every child of parentID within the normalized window.
func (f *AvailabilityFacade) FindByParentID(ctx context.Context, parentID availability.ResourceID, within timeslot.TimeSlot) (availability.ResourceGroupedAvailability, error) {
	normalized, err := f.normalize("within", within)
	if err != nil {
		return availability.None(), err
	}
	rows, err := f.repo.LoadAllByParentIDWithinSlot(ctx, parentID, normalized)
	if err != nil {
		return availability.None(), mapRepoError(err)
	}
	return availability.NewGrouped(rows, normalized), nil
}

// LoadCalendar projects one resource's rows into owner slots.
func (f *AvailabilityFacade) LoadCalendar(ctx context.Context, resourceID availability.ResourceID, within timeslot.TimeSlot) (availability.Calendar, error) {
	normalized, err := f.normalize("within", within)
	if err != nil {
		return availability.Calendar{}, err
	}
	calendar, err := f.readModel.Load(ctx, resourceID, normalized)
	if err != nil {
		return availability.Calendar{}, mapRepoError(err)
	}
	return calendar, nil
}

// LoadCalendars projects several resources at once.
func (f *AvailabilityFacade) LoadCalendars(ctx context.Context, resourceIDs []availability.ResourceID, within timeslot.TimeSlot) (availability.Calendars, error) {
	normalized, err := f.normalize("within", within)
	if err != nil {
		return availability.Calendars{}, err
	}
	calendars, err := f.readModel.LoadAll(ctx, resourceIDs, normalized)
	if err != nil {
		return availability.Calendars{}, mapRepoError(err)
	}
	return calendars, nil
}
