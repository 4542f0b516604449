package availability

import (
	"time"

	"github.com/google/uuid"

	"github.com/example/resource-scheduler/internal/timeslot"
)

var segmentNamespace = uuid.MustParse("8f1e6f36-3c1b-4b1e-9a43-6c0f4f6c9b10")

// ResourceID identifies a schedulable resource.
type ResourceID string

// NewResourceID returns a random identifier.
func NewResourceID() ResourceID {
	return ResourceID(uuid.NewString())
}

// String implements fmt.Stringer.
func (id ResourceID) String() string { return string(id) }

// IsZero reports whether the identifier is unset.
func (id ResourceID) IsZero() bool { return id == "" }

// Owner identifies whoever holds a blockade. The zero value means nobody.
type Owner string

// NoOwner is the absent owner.
const NoOwner Owner = ""

// NewOwner returns a random owner identifier.
func NewOwner() Owner {
	return Owner(uuid.NewString())
}

// IsNone reports whether the owner is absent.
func (o Owner) IsNone() bool { return o == NoOwner }

// SegmentID identifies a single availability row.
type SegmentID string

// NewSegmentID derives a stable identifier for the pair (resourceID, slot).
func NewSegmentID(resourceID ResourceID, slot timeslot.TimeSlot) SegmentID {
	name := string(resourceID) + "|" + slot.From.UTC().Format(time.RFC3339Nano) + "|" + slot.To.UTC().Format(time.RFC3339Nano)
	return SegmentID(uuid.NewSHA1(segmentNamespace, []byte(name)).String())
}

// Blockade is the ownership state of a row.
type Blockade struct {
	TakenBy  Owner
	Disabled bool
}

// NoBlockade is the available state.
func NoBlockade() Blockade { return Blockade{} }

// OwnedBy blocks for the owner.
func OwnedBy(owner Owner) Blockade { return Blockade{TakenBy: owner} }

// DisabledBy marks the row disabled by the owner.
func DisabledBy(owner Owner) Blockade { return Blockade{TakenBy: owner, Disabled: true} }

// IsAvailable reports whether nobody holds the row.
func (b Blockade) IsAvailable() bool { return b.TakenBy.IsNone() && !b.Disabled }

// AvailabilityResource is one segment-aligned row for a resource.
type AvailabilityResource struct {
	ID         SegmentID
	ResourceID ResourceID
	ParentID   ResourceID
	Slot       timeslot.TimeSlot
	Blockade   Blockade
	Version    int64
}

// NewAvailabilityResource builds an unowned row at version 0.
func NewAvailabilityResource(resourceID, parentID ResourceID, slot timeslot.TimeSlot) AvailabilityResource {
	return AvailabilityResource{
		ID:         NewSegmentID(resourceID, slot),
		ResourceID: resourceID,
		ParentID:   parentID,
		Slot:       slot,
		Version:    0,
	}
}

// BlockedBy returns the current owner, if any.
func (r AvailabilityResource) BlockedBy() Owner { return r.Blockade.TakenBy }

// IsDisabled reports whether the row is disabled by anyone.
func (r AvailabilityResource) IsDisabled() bool { return r.Blockade.Disabled }

// IsDisabledBy reports whether the row is disabled by owner.
func (r AvailabilityResource) IsDisabledBy(owner Owner) bool {
	return r.Blockade.Disabled && r.Blockade.TakenBy == owner
}

func (r AvailabilityResource) canBeBlockedBy(owner Owner) bool {
	if owner.IsNone() || r.Blockade.Disabled {
		return false
	}
	return r.Blockade.TakenBy.IsNone() || r.Blockade.TakenBy == owner
}

func (r AvailabilityResource) canBeDisabledBy(owner Owner) bool {
	if owner.IsNone() {
		return false
	}
	return !r.Blockade.Disabled || r.Blockade.TakenBy == owner
}

func (r AvailabilityResource) canBeEnabledBy(owner Owner) bool {
	return r.IsDisabledBy(owner) && !owner.IsNone()
}

func (r AvailabilityResource) with(b Blockade) AvailabilityResource {
	r.Blockade = b
	r.Version++
	return r
}
