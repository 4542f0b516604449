package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/capability"
	"github.com/example/resource-scheduler/internal/planning"
	"github.com/example/resource-scheduler/internal/timeslot"
)

var (
	resourceCounter   uint64
	capabilityCounter uint64
	stageCounter      uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDay is the UTC day containing ReferenceTime.
func ReferenceDay() timeslot.TimeSlot {
	return timeslot.ForDay(referenceTime.Year(), referenceTime.Month(), referenceTime.Day())
}

// At returns hour:minute on the reference day.
func At(hour, minute int) time.Time {
	return ReferenceDay().From.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// Slot returns [from, to) on the reference day, given as hour and minute pairs.
func Slot(fromHour, fromMinute, toHour, toMinute int) timeslot.TimeSlot {
	return timeslot.MustNew(At(fromHour, fromMinute), At(toHour, toMinute))
}

// ----------------------------- Resource fixtures ----------------------------

// ResourceFixture describes availability rows to create for a resource.
type ResourceFixture struct {
	ID       availability.ResourceID
	ParentID availability.ResourceID
	Slot     timeslot.TimeSlot
}

// ResourceOption configures the generated resource fixture.
type ResourceOption func(*ResourceFixture)

// NewResourceFixture returns a resource available from 09:00 to 17:00 on the reference day.
func NewResourceFixture(opts ...ResourceOption) ResourceFixture {
	idx := atomic.AddUint64(&resourceCounter, 1)
	fixture := ResourceFixture{
		ID:   availability.ResourceID(fmt.Sprintf("resource-%03d", idx)),
		Slot: Slot(9, 0, 17, 0),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithResourceID overrides the generated resource ID.
func WithResourceID(id availability.ResourceID) ResourceOption {
	return func(f *ResourceFixture) {
		f.ID = id
	}
}

// WithParent makes the resource a child of parent.
func WithParent(parent availability.ResourceID) ResourceOption {
	return func(f *ResourceFixture) {
		f.ParentID = parent
	}
}

// WithResourceSlot overrides the availability window.
func WithResourceSlot(slot timeslot.TimeSlot) ResourceOption {
	return func(f *ResourceFixture) {
		f.Slot = slot
	}
}

// Grouped builds the fresh rows for the fixture.
func (f ResourceFixture) Grouped(segment availability.Segment) availability.ResourceGroupedAvailability {
	group, err := availability.Of(f.ID, f.Slot, f.ParentID, segment)
	if err != nil {
		panic(err)
	}
	return group
}

// ---------------------------- Capability fixtures ---------------------------

// CapabilityFixture describes a catalog entry.
type CapabilityFixture struct {
	ID         capability.AllocatableCapabilityID
	ResourceID availability.ResourceID
	Capability capability.Capability
	Validity   timeslot.TimeSlot
}

// CapabilityOption configures the generated capability fixture.
type CapabilityOption func(*CapabilityFixture)

// NewCapabilityFixture returns a deterministic skill valid for the whole reference day.
func NewCapabilityFixture(opts ...CapabilityOption) CapabilityFixture {
	idx := atomic.AddUint64(&capabilityCounter, 1)
	fixture := CapabilityFixture{
		ID:         capability.AllocatableCapabilityID(fmt.Sprintf("capability-%03d", idx)),
		ResourceID: availability.ResourceID(fmt.Sprintf("resource-%03d", idx)),
		Capability: capability.Skill(fmt.Sprintf("skill-%03d", idx)),
		Validity:   ReferenceDay(),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithCapabilityID overrides the generated entry ID.
func WithCapabilityID(id capability.AllocatableCapabilityID) CapabilityOption {
	return func(f *CapabilityFixture) {
		f.ID = id
	}
}

// WithCapabilityResource sets the owning resource.
func WithCapabilityResource(id availability.ResourceID) CapabilityOption {
	return func(f *CapabilityFixture) {
		f.ResourceID = id
	}
}

// WithCapability sets the offered capability.
func WithCapability(c capability.Capability) CapabilityOption {
	return func(f *CapabilityFixture) {
		f.Capability = c
	}
}

// WithValidity sets the validity window.
func WithValidity(slot timeslot.TimeSlot) CapabilityOption {
	return func(f *CapabilityFixture) {
		f.Validity = slot
	}
}

// Allocatable returns the fixture as a catalog entry.
func (f CapabilityFixture) Allocatable() capability.AllocatableCapability {
	return capability.AllocatableCapability{
		ID:         f.ID,
		ResourceID: f.ResourceID,
		Capability: f.Capability,
		Validity:   f.Validity,
	}
}

// ------------------------------- Stage fixtures -----------------------------

// StageOption configures a generated stage.
type StageOption func(*planning.Stage)

// NewStageFixture returns a one day stage with a generated name.
func NewStageFixture(opts ...StageOption) planning.Stage {
	idx := atomic.AddUint64(&stageCounter, 1)
	stage := planning.NewStage(fmt.Sprintf("stage-%03d", idx)).OfDuration(24 * time.Hour)
	for _, opt := range opts {
		opt(&stage)
	}
	return stage
}

// WithStageName overrides the generated name.
func WithStageName(name string) StageOption {
	return func(s *planning.Stage) {
		s.Name = name
	}
}

// WithStageDuration overrides the duration.
func WithStageDuration(d time.Duration) StageOption {
	return func(s *planning.Stage) {
		*s = s.OfDuration(d)
	}
}

// WithStageDemands adds demands for the given capabilities.
func WithStageDemands(caps ...capability.Capability) StageOption {
	return func(s *planning.Stage) {
		for _, c := range caps {
			*s = s.WithDemands(planning.DemandFor(c))
		}
	}
}
