package sqlite

import (
	"context"
	"strings"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/timeslot"
)

// AvailabilityReadModel builds calendars straight from the availabilities table.
type AvailabilityReadModel struct {
	rows *AvailabilityRepository
}

// NewAvailabilityReadModel creates the read model.
func NewAvailabilityReadModel(pool *ConnectionPool) *AvailabilityReadModel {
	return &AvailabilityReadModel{rows: NewAvailabilityRepository(pool)}
}

// Load returns the calendar of one resource within the window.
func (m *AvailabilityReadModel) Load(ctx context.Context, resourceID availability.ResourceID, within timeslot.TimeSlot) (availability.Calendar, error) {
	rows, err := m.rows.LoadAllWithinSlot(ctx, resourceID, within)
	if err != nil {
		return availability.Calendar{}, err
	}
	return availability.CalendarFromRows(resourceID, rows), nil
}

// LoadAll returns calendars for every requested resource in one query.
func (m *AvailabilityReadModel) LoadAll(ctx context.Context, resourceIDs []availability.ResourceID, within timeslot.TimeSlot) (availability.Calendars, error) {
	if len(resourceIDs) == 0 {
		return availability.NewCalendars(), nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(resourceIDs)), ", ")
	args := make([]any, 0, len(resourceIDs)+2)
	for _, id := range resourceIDs {
		args = append(args, string(id))
	}
	args = append(args, formatTime(within.From), formatTime(within.To))

	rows, err := m.rows.query(ctx, `
		SELECT `+availabilityColumns+`
		FROM availabilities
		WHERE resource_id IN (`+placeholders+`) AND from_date >= ? AND to_date <= ?
		ORDER BY resource_id, from_date`,
		args...,
	)
	if err != nil {
		return availability.Calendars{}, err
	}
	return availability.CalendarsFromRows(resourceIDs, rows), nil
}
