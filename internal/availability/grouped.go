package availability

import (
	"sort"

	"github.com/example/resource-scheduler/internal/timeslot"
)

// ResourceGroupedAvailability treats every row covering a window as one unit.
// Block, Release, Disable and Enable either change every row or none.
type ResourceGroupedAvailability struct {
	within    timeslot.TimeSlot
	resources []AvailabilityResource
	loaded    map[SegmentID]int64
}

// Of builds fresh rows for a resource, one per segment of the normalized slot.
func Of(resourceID ResourceID, slot timeslot.TimeSlot, parentID ResourceID, segment Segment) (ResourceGroupedAvailability, error) {
	normalized, err := NormalizeToSegmentBoundaries(slot, segment)
	if err != nil {
		return ResourceGroupedAvailability{}, err
	}
	parts, err := SplitIntoSegments(normalized, segment)
	if err != nil {
		return ResourceGroupedAvailability{}, err
	}

	rows := make([]AvailabilityResource, 0, len(parts))
	for _, part := range parts {
		rows = append(rows, NewAvailabilityResource(resourceID, parentID, part))
	}
	return NewGrouped(rows, normalized), nil
}

// NewGrouped wraps loaded rows. The versions seen here are the ones a
// version-checked save compares against.
func NewGrouped(rows []AvailabilityResource, within timeslot.TimeSlot) ResourceGroupedAvailability {
	copied := make([]AvailabilityResource, len(rows))
	copy(copied, rows)
	sort.SliceStable(copied, func(i, j int) bool {
		if copied[i].ResourceID != copied[j].ResourceID {
			return copied[i].ResourceID < copied[j].ResourceID
		}
		return copied[i].Slot.From.Before(copied[j].Slot.From)
	})

	loaded := make(map[SegmentID]int64, len(copied))
	for _, row := range copied {
		loaded[row.ID] = row.Version
	}
	return ResourceGroupedAvailability{within: within, resources: copied, loaded: loaded}
}

// None is an empty aggregate; every mutation on it fails.
func None() ResourceGroupedAvailability {
	return ResourceGroupedAvailability{}
}

// Within returns the window the aggregate was loaded for.
func (g ResourceGroupedAvailability) Within() timeslot.TimeSlot { return g.within }

// Resources returns a copy of the current rows.
func (g ResourceGroupedAvailability) Resources() []AvailabilityResource {
	out := make([]AvailabilityResource, len(g.resources))
	copy(out, g.resources)
	return out
}

// Size is the number of rows.
func (g ResourceGroupedAvailability) Size() int { return len(g.resources) }

// IsEmpty reports whether no rows were found.
func (g ResourceGroupedAvailability) IsEmpty() bool { return len(g.resources) == 0 }

// LoadedVersion returns the version a row had when the aggregate was built.
func (g ResourceGroupedAvailability) LoadedVersion(id SegmentID) (int64, bool) {
	v, ok := g.loaded[id]
	return v, ok
}

// ResourceIDs lists the distinct resources in the aggregate.
func (g ResourceGroupedAvailability) ResourceIDs() []ResourceID {
	seen := make(map[ResourceID]struct{})
	var ids []ResourceID
	for _, r := range g.resources {
		if _, ok := seen[r.ResourceID]; ok {
			continue
		}
		seen[r.ResourceID] = struct{}{}
		ids = append(ids, r.ResourceID)
	}
	return ids
}

// Block takes every row for owner. It fails if any row is held by someone
// else, is disabled, or if the rows leave part of the window undefined.
func (g *ResourceGroupedAvailability) Block(owner Owner) bool {
	if !g.coversWindow() {
		return false
	}
	return g.apply(func(r AvailabilityResource) (Blockade, bool) {
		return OwnedBy(owner), r.canBeBlockedBy(owner)
	})
}

// Release frees every row held by owner. All rows must either be held by
// owner or all be free; a mix of free and held rows is a conflict.
func (g *ResourceGroupedAvailability) Release(owner Owner) bool {
	if g.IsEmpty() || owner.IsNone() {
		return false
	}
	free, held := 0, 0
	for _, r := range g.resources {
		switch {
		case r.Blockade.Disabled:
			return false
		case r.Blockade.TakenBy.IsNone():
			free++
		case r.Blockade.TakenBy == owner:
			held++
		default:
			return false
		}
	}
	if free > 0 && held > 0 {
		return false
	}
	return g.apply(func(AvailabilityResource) (Blockade, bool) {
		return NoBlockade(), true
	})
}

// Disable marks every row disabled by owner regardless of who held it,
// unless some row is already disabled by a different owner.
func (g *ResourceGroupedAvailability) Disable(owner Owner) bool {
	return g.apply(func(r AvailabilityResource) (Blockade, bool) {
		return DisabledBy(owner), r.canBeDisabledBy(owner)
	})
}

// Enable lifts a disable. Only the owner that disabled every row may do so.
func (g *ResourceGroupedAvailability) Enable(owner Owner) bool {
	return g.apply(func(r AvailabilityResource) (Blockade, bool) {
		return NoBlockade(), r.canBeEnabledBy(owner)
	})
}

// apply stages the change on a copy and commits it only when every row accepts.
func (g *ResourceGroupedAvailability) apply(change func(AvailabilityResource) (Blockade, bool)) bool {
	if g.IsEmpty() {
		return false
	}
	staged := make([]AvailabilityResource, len(g.resources))
	for i, r := range g.resources {
		next, ok := change(r)
		if !ok {
			return false
		}
		staged[i] = r.with(next)
	}
	g.resources = staged
	return true
}

// coversWindow checks that every resource in the aggregate has rows spanning
// the whole window without gaps.
func (g ResourceGroupedAvailability) coversWindow() bool {
	if g.IsEmpty() {
		return false
	}
	if g.within.IsEmpty() {
		return true
	}

	byResource := make(map[ResourceID][]timeslot.TimeSlot)
	for _, r := range g.resources {
		byResource[r.ResourceID] = append(byResource[r.ResourceID], r.Slot)
	}
	for _, slots := range byResource {
		sort.Slice(slots, func(i, j int) bool { return slots[i].From.Before(slots[j].From) })
		cursor := g.within.From
		for _, s := range slots {
			if s.From.After(cursor) {
				return false
			}
			if s.To.After(cursor) {
				cursor = s.To
			}
		}
		if cursor.Before(g.within.To) {
			return false
		}
	}
	return true
}

// BlockedEntirelyBy reports whether owner holds every row.
func (g ResourceGroupedAvailability) BlockedEntirelyBy(owner Owner) bool {
	return g.all(func(r AvailabilityResource) bool {
		return r.Blockade.TakenBy == owner && !r.Blockade.Disabled
	})
}

// IsDisabledEntirelyBy reports whether owner disabled every row.
func (g ResourceGroupedAvailability) IsDisabledEntirelyBy(owner Owner) bool {
	return g.all(func(r AvailabilityResource) bool { return r.IsDisabledBy(owner) })
}

// IsEntirelyAvailable reports whether rows cover the whole window and every row is free.
func (g ResourceGroupedAvailability) IsEntirelyAvailable() bool {
	return g.coversWindow() && g.all(func(r AvailabilityResource) bool { return r.Blockade.IsAvailable() })
}

// FindBlockedBy returns the rows owner currently holds, disabled or not.
func (g ResourceGroupedAvailability) FindBlockedBy(owner Owner) []AvailabilityResource {
	var out []AvailabilityResource
	for _, r := range g.resources {
		if r.Blockade.TakenBy == owner {
			out = append(out, r)
		}
	}
	return out
}

func (g ResourceGroupedAvailability) all(pred func(AvailabilityResource) bool) bool {
	if g.IsEmpty() {
		return false
	}
	for _, r := range g.resources {
		if !pred(r) {
			return false
		}
	}
	return true
}
