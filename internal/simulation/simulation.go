// Package simulation evaluates hypothetical capability assignments without
// touching persisted state.
package simulation

import (
	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/capability"
	"github.com/example/resource-scheduler/internal/timeslot"
)

// AvailableResourceCapability says a resource offers a capability during a slot.
type AvailableResourceCapability struct {
	ResourceID availability.ResourceID
	Capability capability.Capability
	Slot       timeslot.TimeSlot
}

// Performs reports whether the entry offers c.
func (a AvailableResourceCapability) Performs(c capability.Capability) bool {
	return a.Capability == c
}

// Serves reports whether the entry can satisfy d on its own.
func (a AvailableResourceCapability) Serves(d Demand) bool {
	return a.Performs(d.Capability) && d.Slot.Within(a.Slot)
}

// FromAllocatable converts a catalog entry into a simulation entry.
func FromAllocatable(c capability.AllocatableCapability) AvailableResourceCapability {
	return AvailableResourceCapability{ResourceID: c.ResourceID, Capability: c.Capability, Slot: c.Validity}
}

// Demand is a need for a capability during a slot.
type Demand struct {
	Capability capability.Capability
	Slot       timeslot.TimeSlot
}

// SimulatedCapabilities is an immutable list of capability entries.
type SimulatedCapabilities struct {
	capabilities []AvailableResourceCapability
}

// New copies the entries into a new list.
func New(capabilities ...AvailableResourceCapability) SimulatedCapabilities {
	return SimulatedCapabilities{capabilities: append([]AvailableResourceCapability(nil), capabilities...)}
}

// None returns an empty list.
func None() SimulatedCapabilities {
	return SimulatedCapabilities{}
}

// Add returns a new list with the entries appended. The receiver is not modified
// and the result never shares storage with it.
func (s SimulatedCapabilities) Add(more ...AvailableResourceCapability) SimulatedCapabilities {
	combined := make([]AvailableResourceCapability, 0, len(s.capabilities)+len(more))
	combined = append(combined, s.capabilities...)
	combined = append(combined, more...)
	return SimulatedCapabilities{capabilities: combined}
}

// Capabilities returns a copy of the entries.
func (s SimulatedCapabilities) Capabilities() []AvailableResourceCapability {
	return append([]AvailableResourceCapability(nil), s.capabilities...)
}

// Len is the number of entries.
func (s SimulatedCapabilities) Len() int {
	return len(s.capabilities)
}

// CanSatisfy reports whether every demand can be served by a distinct entry.
func (s SimulatedCapabilities) CanSatisfy(demands []Demand) bool {
	return len(s.Assign(demands)) == len(demands)
}

// Assign matches demands to entries, each entry serving at most one demand.
// The result maps demand index to entry index and is a maximum matching.
func (s SimulatedCapabilities) Assign(demands []Demand) map[int]int {
	return s.AssignWith(demands, func(entry, demand int) bool {
		return s.capabilities[entry].Serves(demands[demand])
	})
}

// AssignWith is Assign with the edges decided by serves, which is called with
// an entry index and a demand index.
func (s SimulatedCapabilities) AssignWith(demands []Demand, serves func(entry, demand int) bool) map[int]int {
	candidates := make([][]int, len(demands))
	for i := range demands {
		for j := range s.capabilities {
			if serves(j, i) {
				candidates[i] = append(candidates[i], j)
			}
		}
	}

	owner := make([]int, len(s.capabilities))
	for j := range owner {
		owner[j] = -1
	}

	var augment func(i int, seen []bool) bool
	augment = func(i int, seen []bool) bool {
		for _, j := range candidates[i] {
			if seen[j] {
				continue
			}
			seen[j] = true
			if owner[j] == -1 || augment(owner[j], seen) {
				owner[j] = i
				return true
			}
		}
		return false
	}

	for i := range demands {
		augment(i, make([]bool, len(s.capabilities)))
	}

	assigned := make(map[int]int)
	for j, i := range owner {
		if i >= 0 {
			assigned[i] = j
		}
	}
	return assigned
}
