package testfixtures

import (
	"fmt"
	"sync"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/capability"
	"github.com/example/resource-scheduler/internal/planning"
)

// IDGenerator hands out readable identifiers such as "resource-1" or
// "project-3". Every kind counts on its own.
type IDGenerator struct {
	mu       sync.Mutex
	counters map[string]uint64
}

// NewIDGenerator returns a generator with every sequence at zero.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{counters: make(map[string]uint64)}
}

func (g *IDGenerator) next(kind string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[kind]++
	return fmt.Sprintf("%s-%d", kind, g.counters[kind])
}

// ResourceID returns the next resource identifier.
func (g *IDGenerator) ResourceID() availability.ResourceID {
	return availability.ResourceID(g.next("resource"))
}

// Owner returns the next owner.
func (g *IDGenerator) Owner() availability.Owner {
	return availability.Owner(g.next("owner"))
}

// CapabilityID returns the next catalog entry identifier.
func (g *IDGenerator) CapabilityID() capability.AllocatableCapabilityID {
	return capability.AllocatableCapabilityID(g.next("capability"))
}

// ProjectID returns the next project identifier. The method value fits the
// planning facade's id generator.
func (g *IDGenerator) ProjectID() planning.ProjectID {
	return planning.ProjectID(g.next("project"))
}
