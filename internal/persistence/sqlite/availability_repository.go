package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/timeslot"
)

// AvailabilityRepository stores availability rows in the availabilities table.
type AvailabilityRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewAvailabilityRepository creates the repository.
func NewAvailabilityRepository(pool *ConnectionPool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool, mapper: NewErrorMapper()}
}

const availabilityColumns = `id, resource_id, resource_parent_id, from_date, to_date, taken_by, disabled, version`

// SaveNewGrouped inserts every row of the group. A duplicate segment undoes
// the whole insert and returns persistence.ErrDuplicate.
func (r *AvailabilityRepository) SaveNewGrouped(ctx context.Context, group availability.ResourceGroupedAvailability) error {
	_, err := r.pool.withSavepoint(ctx, "save_new_grouped", func(ctx context.Context, q queryer) (bool, error) {
		for _, row := range group.Resources() {
			_, err := q.ExecContext(ctx,
				`INSERT INTO availabilities (`+availabilityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				string(row.ID),
				string(row.ResourceID),
				nullableID(row.ParentID),
				formatTime(row.Slot.From),
				formatTime(row.Slot.To),
				nullableOwner(row.Blockade.TakenBy),
				row.Blockade.Disabled,
				row.Version,
			)
			if err != nil {
				return false, r.mapper.MapError(err)
			}
		}
		return true, nil
	})
	return err
}

// SaveGroupedCheckingVersion updates every row whose stored version still
// equals the version the group was loaded with. If any row was changed in the
// meantime nothing is written and false is returned.
func (r *AvailabilityRepository) SaveGroupedCheckingVersion(ctx context.Context, group availability.ResourceGroupedAvailability) (bool, error) {
	if group.IsEmpty() {
		return false, nil
	}
	return r.pool.withSavepoint(ctx, "save_grouped_checking_version", func(ctx context.Context, q queryer) (bool, error) {
		for _, row := range group.Resources() {
			expected, ok := group.LoadedVersion(row.ID)
			if !ok {
				return false, nil
			}
			result, err := q.ExecContext(ctx, `
				UPDATE availabilities
				SET taken_by = ?, disabled = ?, version = ?
				WHERE id = ? AND version = ?`,
				nullableOwner(row.Blockade.TakenBy),
				row.Blockade.Disabled,
				row.Version,
				string(row.ID),
				expected,
			)
			if err != nil {
				return false, r.mapper.MapError(err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return false, fmt.Errorf("failed to get rows affected: %w", err)
			}
			if affected != 1 {
				return false, nil
			}
		}
		return true, nil
	})
}

// LoadAllWithinSlot returns the rows of a resource lying inside slot.
func (r *AvailabilityRepository) LoadAllWithinSlot(ctx context.Context, resourceID availability.ResourceID, slot timeslot.TimeSlot) ([]availability.AvailabilityResource, error) {
	return r.query(ctx, `
		SELECT `+availabilityColumns+`
		FROM availabilities
		WHERE resource_id = ? AND from_date >= ? AND to_date <= ?
		ORDER BY from_date`,
		string(resourceID), formatTime(slot.From), formatTime(slot.To),
	)
}

// LoadAllByParentIDWithinSlot returns the rows of every child of parentID lying inside slot.
func (r *AvailabilityRepository) LoadAllByParentIDWithinSlot(ctx context.Context, parentID availability.ResourceID, slot timeslot.TimeSlot) ([]availability.AvailabilityResource, error) {
	return r.query(ctx, `
		SELECT `+availabilityColumns+`
		FROM availabilities
		WHERE resource_parent_id = ? AND from_date >= ? AND to_date <= ?
		ORDER BY resource_id, from_date`,
		string(parentID), formatTime(slot.From), formatTime(slot.To),
	)
}

func (r *AvailabilityRepository) query(ctx context.Context, query string, args ...any) ([]availability.AvailabilityResource, error) {
	rows, err := r.pool.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var out []availability.AvailabilityResource
	for rows.Next() {
		row, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return out, nil
}

func scanAvailability(rows *sql.Rows) (availability.AvailabilityResource, error) {
	var (
		row              availability.AvailabilityResource
		id, resourceID   string
		parentID, holder sql.NullString
		from, to         string
	)
	if err := rows.Scan(&id, &resourceID, &parentID, &from, &to, &holder, &row.Blockade.Disabled, &row.Version); err != nil {
		return availability.AvailabilityResource{}, fmt.Errorf("failed to scan availability: %w", err)
	}

	fromTime, err := parseTime(from)
	if err != nil {
		return availability.AvailabilityResource{}, err
	}
	toTime, err := parseTime(to)
	if err != nil {
		return availability.AvailabilityResource{}, err
	}

	row.ID = availability.SegmentID(id)
	row.ResourceID = availability.ResourceID(resourceID)
	row.ParentID = availability.ResourceID(parentID.String)
	row.Blockade.TakenBy = availability.Owner(holder.String)
	row.Slot = timeslot.TimeSlot{From: fromTime, To: toTime}
	return row, nil
}

func nullableID(id availability.ResourceID) sql.NullString {
	return sql.NullString{String: string(id), Valid: id != ""}
}

func nullableOwner(owner availability.Owner) sql.NullString {
	return sql.NullString{String: string(owner), Valid: !owner.IsNone()}
}
