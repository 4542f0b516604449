package availability

import (
	"sort"

	"github.com/example/resource-scheduler/internal/timeslot"
)

// Calendar is a read-only view of who holds which part of a resource's time.
// Free time is listed under NoOwner.
type Calendar struct {
	ResourceID ResourceID
	Slots      map[Owner][]timeslot.TimeSlot
}

// EmptyCalendar has no slots at all.
func EmptyCalendar(resourceID ResourceID) Calendar {
	return Calendar{ResourceID: resourceID, Slots: map[Owner][]timeslot.TimeSlot{}}
}

// CalendarFromRows groups rows by owner and merges adjacent slots.
func CalendarFromRows(resourceID ResourceID, rows []AvailabilityResource) Calendar {
	grouped := make(map[Owner][]timeslot.TimeSlot)
	for _, r := range rows {
		if r.ResourceID != resourceID {
			continue
		}
		grouped[r.Blockade.TakenBy] = append(grouped[r.Blockade.TakenBy], r.Slot)
	}
	for owner, slots := range grouped {
		grouped[owner] = mergeAdjacent(slots)
	}
	return Calendar{ResourceID: resourceID, Slots: grouped}
}

// AvailableSlots returns the free parts of the window.
func (c Calendar) AvailableSlots() []timeslot.TimeSlot {
	return c.TakenBy(NoOwner)
}

// TakenBy returns the slots held by owner.
func (c Calendar) TakenBy(owner Owner) []timeslot.TimeSlot {
	slots := c.Slots[owner]
	out := make([]timeslot.TimeSlot, len(slots))
	copy(out, slots)
	return out
}

// Owners lists everyone holding at least one slot, excluding NoOwner.
func (c Calendar) Owners() []Owner {
	var owners []Owner
	for owner := range c.Slots {
		if !owner.IsNone() {
			owners = append(owners, owner)
		}
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners
}

// Calendars is a set of calendars keyed by resource.
type Calendars struct {
	calendars map[ResourceID]Calendar
}

// NewCalendars indexes the calendars by resource.
func NewCalendars(calendars ...Calendar) Calendars {
	m := make(map[ResourceID]Calendar, len(calendars))
	for _, c := range calendars {
		m[c.ResourceID] = c
	}
	return Calendars{calendars: m}
}

// CalendarsFromRows builds one calendar per requested resource.
func CalendarsFromRows(resourceIDs []ResourceID, rows []AvailabilityResource) Calendars {
	byResource := make(map[ResourceID][]AvailabilityResource)
	for _, r := range rows {
		byResource[r.ResourceID] = append(byResource[r.ResourceID], r)
	}
	calendars := make([]Calendar, 0, len(resourceIDs))
	for _, id := range resourceIDs {
		calendars = append(calendars, CalendarFromRows(id, byResource[id]))
	}
	return NewCalendars(calendars...)
}

// Get returns the calendar for id, or an empty one.
func (c Calendars) Get(id ResourceID) Calendar {
	if cal, ok := c.calendars[id]; ok {
		return cal
	}
	return EmptyCalendar(id)
}

// ResourceIDs lists the resources in sorted order.
func (c Calendars) ResourceIDs() []ResourceID {
	ids := make([]ResourceID, 0, len(c.calendars))
	for id := range c.calendars {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func mergeAdjacent(slots []timeslot.TimeSlot) []timeslot.TimeSlot {
	if len(slots) == 0 {
		return nil
	}
	sorted := make([]timeslot.TimeSlot, len(slots))
	copy(sorted, slots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].From.Before(sorted[j].From) })

	merged := []timeslot.TimeSlot{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !s.From.After(last.To) {
			if s.To.After(last.To) {
				last.To = s.To
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}
