package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/resource-scheduler/internal/application"
	"github.com/example/resource-scheduler/internal/availability"
)

// ServiceFactory assists tests with constructing facades using deterministic
// identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Segment     availability.Segment
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator(),
		Segment:     availability.DefaultSegment(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator()
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithSegment overrides the segment used by availability facades.
func WithSegment(segment availability.Segment) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Segment = segment
	}
}

// Facades bundles the facades built over one storage harness.
type Facades struct {
	Availability *application.AvailabilityFacade
	Capabilities *application.CapabilityFacade
	Planning     *application.PlanningFacade
}

// NewFacades wires every facade over the harness.
func (f *ServiceFactory) NewFacades(h *StorageHarness, logger *slog.Logger) Facades {
	avail := application.NewAvailabilityFacadeWithLogger(h.Tx, h.Availability, h.ReadModel, f.Segment, logger)
	return Facades{
		Availability: avail,
		Capabilities: application.NewCapabilityFacadeWithLogger(h.Tx, h.Capabilities, avail, logger),
		Planning:     application.NewPlanningFacadeWithLogger(h.Tx, h.Projects, f.IDGenerator.ProjectID, f.Clock.NowFunc(), logger),
	}
}

// NewPlanningFacade builds a planning facade over the harness projects.
func (f *ServiceFactory) NewPlanningFacade(h *StorageHarness) *application.PlanningFacade {
	return application.NewPlanningFacade(h.Tx, h.Projects, f.IDGenerator.ProjectID, f.Clock.NowFunc())
}
