package persistence

import (
	"context"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/capability"
	"github.com/example/resource-scheduler/internal/planning"
	"github.com/example/resource-scheduler/internal/timeslot"
)

// Transactor runs fn inside one atomic unit of work. Repositories called with
// the context passed to fn join that unit. Nested calls reuse the outer unit.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AvailabilityRepository stores availability rows.
type AvailabilityRepository interface {
	// SaveNewGrouped inserts every row. ErrDuplicate if any segment already exists;
	// nothing is inserted in that case.
	SaveNewGrouped(ctx context.Context, group availability.ResourceGroupedAvailability) error
	// SaveGroupedCheckingVersion writes every row if each still has the version
	// it was loaded with. It reports false and writes nothing otherwise.
	SaveGroupedCheckingVersion(ctx context.Context, group availability.ResourceGroupedAvailability) (bool, error)
	LoadAllWithinSlot(ctx context.Context, resourceID availability.ResourceID, slot timeslot.TimeSlot) ([]availability.AvailabilityResource, error)
	LoadAllByParentIDWithinSlot(ctx context.Context, parentID availability.ResourceID, slot timeslot.TimeSlot) ([]availability.AvailabilityResource, error)
}

// AvailabilityReadModel builds calendar projections.
type AvailabilityReadModel interface {
	Load(ctx context.Context, resourceID availability.ResourceID, within timeslot.TimeSlot) (availability.Calendar, error)
	LoadAll(ctx context.Context, resourceIDs []availability.ResourceID, within timeslot.TimeSlot) (availability.Calendars, error)
}

// CapabilityRepository stores the allocatable capability catalog.
type CapabilityRepository interface {
	SaveAll(ctx context.Context, caps []capability.AllocatableCapability) error
	FindByID(ctx context.Context, id capability.AllocatableCapabilityID) (capability.AllocatableCapability, error)
	// FindCapabilities returns entries offering c whose validity overlaps slot.
	FindCapabilities(ctx context.Context, c capability.Capability, slot timeslot.TimeSlot) ([]capability.AllocatableCapability, error)
	FindByResource(ctx context.Context, resourceID availability.ResourceID) ([]capability.AllocatableCapability, error)
}

// ProjectRepository stores planning projects.
type ProjectRepository interface {
	Save(ctx context.Context, project planning.Project) error
	Get(ctx context.Context, id planning.ProjectID) (planning.Project, error)
	List(ctx context.Context) ([]planning.Project, error)
}
