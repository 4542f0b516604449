// Package capability holds the catalog of what a resource can do and when.
package capability

import (
	"github.com/google/uuid"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/timeslot"
)

// Capability is a named and typed ability such as a skill or an asset.
type Capability struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// Well known capability types.
const (
	TypeSkill      = "SKILL"
	TypePermission = "PERMISSION"
	TypeAsset      = "ASSET"
)

// Skill returns a skill capability.
func Skill(name string) Capability { return Capability{Name: name, Type: TypeSkill} }

// Permission returns a permission capability.
func Permission(name string) Capability { return Capability{Name: name, Type: TypePermission} }

// Asset returns an asset capability.
func Asset(name string) Capability { return Capability{Name: name, Type: TypeAsset} }

// IsZero reports whether the capability is unset.
func (c Capability) IsZero() bool { return c.Name == "" && c.Type == "" }

// String renders type:name.
func (c Capability) String() string { return c.Type + ":" + c.Name }

// AllocatableCapabilityID identifies a catalog entry.
type AllocatableCapabilityID string

// NewAllocatableCapabilityID returns a random identifier.
func NewAllocatableCapabilityID() AllocatableCapabilityID {
	return AllocatableCapabilityID(uuid.NewString())
}

// ToAvailabilityResourceID maps the entry onto the availability rows that
// track when it is free.
func (id AllocatableCapabilityID) ToAvailabilityResourceID() availability.ResourceID {
	return availability.ResourceID(id)
}

// AllocatableCapability binds a capability to a resource for [From, To) of Validity.
type AllocatableCapability struct {
	ID         AllocatableCapabilityID
	ResourceID availability.ResourceID
	Capability Capability
	Validity   timeslot.TimeSlot
}

// NewAllocatableCapability builds an entry with a fresh identifier.
func NewAllocatableCapability(resourceID availability.ResourceID, c Capability, validity timeslot.TimeSlot) AllocatableCapability {
	return AllocatableCapability{
		ID:         NewAllocatableCapabilityID(),
		ResourceID: resourceID,
		Capability: c,
		Validity:   validity,
	}
}

// MatchesQuery reports whether the entry is relevant for a search over slot.
// Validity is half-open, so a query ending exactly at From or starting
// exactly at To does not match.
func (a AllocatableCapability) MatchesQuery(slot timeslot.TimeSlot) bool {
	return a.Validity.Overlaps(slot)
}

// CanCover reports whether the entry is valid for the whole slot, which is
// what an allocation needs.
func (a AllocatableCapability) CanCover(slot timeslot.TimeSlot) bool {
	return slot.Within(a.Validity)
}

// Filter returns entries offering c whose validity overlaps slot.
func Filter(entries []AllocatableCapability, c Capability, slot timeslot.TimeSlot) []AllocatableCapability {
	var out []AllocatableCapability
	for _, e := range entries {
		if e.Capability == c && e.MatchesQuery(slot) {
			out = append(out, e)
		}
	}
	return out
}

// Covering returns entries offering c that are valid for the whole slot.
func Covering(entries []AllocatableCapability, c Capability, slot timeslot.TimeSlot) []AllocatableCapability {
	var out []AllocatableCapability
	for _, e := range entries {
		if e.Capability == c && e.CanCover(slot) {
			out = append(out, e)
		}
	}
	return out
}
