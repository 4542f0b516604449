package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/capability"
	"github.com/example/resource-scheduler/internal/persistence"
	"github.com/example/resource-scheduler/internal/simulation"
	"github.com/example/resource-scheduler/internal/timeslot"
)

// CapabilityFacade keeps the capability catalog and allocates capabilities by
// blocking the availability rows that track them.
type CapabilityFacade struct {
	tx           persistence.Transactor
	capabilities persistence.CapabilityRepository
	availability *AvailabilityFacade
	now          func() time.Time
	logger       *slog.Logger
	recorder     OperationRecorder
}

// NewCapabilityFacade constructs the facade with the default logger.
func NewCapabilityFacade(tx persistence.Transactor, capabilities persistence.CapabilityRepository, availability *AvailabilityFacade) *CapabilityFacade {
	return NewCapabilityFacadeWithLogger(tx, capabilities, availability, nil)
}

// NewCapabilityFacadeWithLogger constructs the facade with a specified logger.
func NewCapabilityFacadeWithLogger(tx persistence.Transactor, capabilities persistence.CapabilityRepository, availability *AvailabilityFacade, logger *slog.Logger) *CapabilityFacade {
	return &CapabilityFacade{
		tx:           tx,
		capabilities: capabilities,
		availability: availability,
		now:          time.Now,
		logger:       defaultLogger(logger),
		recorder:     noopRecorder{},
	}
}

// WithRecorder sets the recorder observing every call and returns the facade.
func (f *CapabilityFacade) WithRecorder(r OperationRecorder) *CapabilityFacade {
	f.recorder = defaultRecorder(r)
	return f
}

func (f *CapabilityFacade) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, f.logger, "CapabilityFacade", operation, attrs...)
}

// ScheduleResourceCapabilities registers caps for resourceID over slot. Each
// entry gets its own availability rows, child rows of the resource, so that
// entries can be blocked independently.
func (f *CapabilityFacade) ScheduleResourceCapabilities(ctx context.Context, resourceID availability.ResourceID, caps []capability.Capability, slot timeslot.TimeSlot) (ids []capability.AllocatableCapabilityID, err error) {
	if f == nil {
		return nil, fmt.Errorf("CapabilityFacade is nil")
	}

	start := f.now()
	logger := f.loggerWith(ctx, "ScheduleResourceCapabilities",
		"resource_id", resourceID,
		"slot", slot.String(),
	)
	defer func() {
		f.recorder.RecordOperation("capability", "schedule", outcome(true, err), f.now().Sub(start))
		if err != nil {
			logger.ErrorContext(ctx, "failed to schedule capabilities", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "capabilities scheduled", "count", len(ids))
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(string(resourceID)) == "" {
		vErr.add("resource_id", "resource id is required")
	}
	if len(caps) == 0 {
		vErr.add("capabilities", "at least one capability is required")
	}
	for i, c := range caps {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Type) == "" {
			vErr.add(fmt.Sprintf("capabilities[%d]", i), "name and type are required")
		}
	}
	validateSlot(vErr, "slot", slot)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	entries := make([]capability.AllocatableCapability, 0, len(caps))
	for _, c := range caps {
		entries = append(entries, capability.NewAllocatableCapability(resourceID, c, slot))
	}

	err = f.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := f.capabilities.SaveAll(ctx, entries); err != nil {
			return mapRepoError(err)
		}
		for _, e := range entries {
			if err := f.availability.CreateResourceSlots(ctx, e.ID.ToAvailabilityResourceID(), slot, resourceID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids = make([]capability.AllocatableCapabilityID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

// FindCapabilities returns catalog entries offering c whose validity overlaps slot.
func (f *CapabilityFacade) FindCapabilities(ctx context.Context, c capability.Capability, slot timeslot.TimeSlot) ([]capability.AllocatableCapability, error) {
	vErr := &ValidationError{}
	validateSlot(vErr, "slot", slot)
	if vErr.HasErrors() {
		return nil, vErr
	}
	found, err := f.capabilities.FindCapabilities(ctx, c, slot)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return found, nil
}

// FindAvailableCapabilities returns entries offering c that are valid for the
// whole slot and whose availability rows are entirely free over it.
func (f *CapabilityFacade) FindAvailableCapabilities(ctx context.Context, c capability.Capability, slot timeslot.TimeSlot) ([]capability.AllocatableCapability, error) {
	found, err := f.FindCapabilities(ctx, c, slot)
	if err != nil {
		return nil, err
	}

	var out []capability.AllocatableCapability
	for _, entry := range capability.Covering(found, c, slot) {
		group, err := f.availability.Find(ctx, entry.ID.ToAvailabilityResourceID(), slot)
		if err != nil {
			return nil, err
		}
		if group.IsEntirelyAvailable() {
			out = append(out, entry)
		}
	}
	return out, nil
}

// Allocate blocks the first available entry offering c for owner. It reports
// false when no candidate could be blocked.
func (f *CapabilityFacade) Allocate(ctx context.Context, c capability.Capability, slot timeslot.TimeSlot, owner availability.Owner) (allocated capability.AllocatableCapability, ok bool, err error) {
	if f == nil {
		return capability.AllocatableCapability{}, false, fmt.Errorf("CapabilityFacade is nil")
	}

	start := f.now()
	logger := f.loggerWith(ctx, "Allocate",
		"capability", c.String(),
		"owner", owner,
		"slot", slot.String(),
	)
	defer func() {
		f.recorder.RecordOperation("capability", "allocate", outcome(ok, err), f.now().Sub(start))
		switch {
		case err != nil:
			logger.ErrorContext(ctx, "failed to allocate capability", "error", err, "error_kind", ErrorKind(err))
		case !ok:
			logger.InfoContext(ctx, "no capability available")
		default:
			logger.InfoContext(ctx, "capability allocated", "allocatable_capability_id", allocated.ID, "resource_id", allocated.ResourceID)
		}
	}()

	var candidates []capability.AllocatableCapability
	candidates, err = f.FindAvailableCapabilities(ctx, c, slot)
	if err != nil {
		return
	}
	for _, candidate := range candidates {
		ok, err = f.availability.Block(ctx, candidate.ID.ToAvailabilityResourceID(), slot, owner)
		if err != nil {
			return capability.AllocatableCapability{}, false, err
		}
		if ok {
			allocated = candidate
			return
		}
	}
	return capability.AllocatableCapability{}, false, nil
}

// SimulationResult is the outcome of matching demands against a capability pool.
type SimulationResult struct {
	Satisfied bool
	// Assignments maps demand index to the entry serving it.
	Assignments map[int]simulation.AvailableResourceCapability
	Unmet       []simulation.Demand
	Pool        simulation.SimulatedCapabilities
}

// Simulate checks whether demands could be served by the currently free
// catalog plus extra hypothetical entries. A catalog entry serves a demand
// only if its rows were free for that demand's slot. Nothing is blocked or
// stored.
func (f *CapabilityFacade) Simulate(ctx context.Context, demands []simulation.Demand, extra simulation.SimulatedCapabilities) (SimulationResult, error) {
	pool := simulation.None()
	var ids []capability.AllocatableCapabilityID
	freeFor := make(map[capability.AllocatableCapabilityID]map[int]bool)
	for i, d := range demands {
		available, err := f.FindAvailableCapabilities(ctx, d.Capability, d.Slot)
		if err != nil {
			return SimulationResult{}, err
		}
		for _, entry := range available {
			if freeFor[entry.ID] == nil {
				freeFor[entry.ID] = make(map[int]bool)
				ids = append(ids, entry.ID)
				pool = pool.Add(simulation.FromAllocatable(entry))
			}
			freeFor[entry.ID][i] = true
		}
	}
	catalog := len(ids)
	pool = pool.Add(extra.Capabilities()...)

	entries := pool.Capabilities()
	assigned := pool.AssignWith(demands, func(j, i int) bool {
		if !entries[j].Serves(demands[i]) {
			return false
		}
		return j >= catalog || freeFor[ids[j]][i]
	})
	result := SimulationResult{
		Satisfied:   len(assigned) == len(demands),
		Assignments: make(map[int]simulation.AvailableResourceCapability, len(assigned)),
		Pool:        pool,
	}
	for i, d := range demands {
		j, ok := assigned[i]
		if !ok {
			result.Unmet = append(result.Unmet, d)
			continue
		}
		result.Assignments[i] = entries[j]
	}
	return result, nil
}
