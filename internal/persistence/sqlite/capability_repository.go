package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/capability"
	"github.com/example/resource-scheduler/internal/timeslot"
)

// CapabilityRepository stores the allocatable capability catalog. The
// capability itself is kept as a JSON document so new capability attributes
// do not need a migration.
type CapabilityRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewCapabilityRepository creates the repository.
func NewCapabilityRepository(pool *ConnectionPool) *CapabilityRepository {
	return &CapabilityRepository{pool: pool, mapper: NewErrorMapper()}
}

const capabilityColumns = `id, resource_id, capability, from_date, to_date`

// SaveAll inserts or replaces every entry in one transaction.
func (r *CapabilityRepository) SaveAll(ctx context.Context, caps []capability.AllocatableCapability) error {
	return r.pool.WithinTransaction(ctx, func(ctx context.Context) error {
		q := r.pool.executor(ctx)
		for _, c := range caps {
			doc, err := json.Marshal(c.Capability)
			if err != nil {
				return fmt.Errorf("failed to encode capability: %w", err)
			}
			_, err = q.ExecContext(ctx, `
				INSERT INTO allocatable_capabilities (`+capabilityColumns+`)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					resource_id = excluded.resource_id,
					capability = excluded.capability,
					from_date = excluded.from_date,
					to_date = excluded.to_date`,
				string(c.ID),
				string(c.ResourceID),
				string(doc),
				formatTime(c.Validity.From),
				formatTime(c.Validity.To),
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
}

// FindByID returns persistence.ErrNotFound when the entry does not exist.
func (r *CapabilityRepository) FindByID(ctx context.Context, id capability.AllocatableCapabilityID) (capability.AllocatableCapability, error) {
	row := r.pool.executor(ctx).QueryRowContext(ctx,
		`SELECT `+capabilityColumns+` FROM allocatable_capabilities WHERE id = ?`, string(id))
	c, err := scanCapability(row)
	if err != nil {
		return capability.AllocatableCapability{}, r.mapper.MapError(err)
	}
	return c, nil
}

// FindCapabilities returns entries offering c whose validity overlaps slot.
// Both boundaries are exclusive: an entry ending at slot.From does not match.
func (r *CapabilityRepository) FindCapabilities(ctx context.Context, c capability.Capability, slot timeslot.TimeSlot) ([]capability.AllocatableCapability, error) {
	return r.query(ctx, `
		SELECT `+capabilityColumns+`
		FROM allocatable_capabilities
		WHERE json_extract(capability, '$.name') = ?
			AND json_extract(capability, '$.type') = ?
			AND from_date < ? AND to_date > ?
		ORDER BY from_date, id`,
		c.Name, c.Type, formatTime(slot.To), formatTime(slot.From),
	)
}

// FindByResource lists every entry of a resource.
func (r *CapabilityRepository) FindByResource(ctx context.Context, resourceID availability.ResourceID) ([]capability.AllocatableCapability, error) {
	return r.query(ctx, `
		SELECT `+capabilityColumns+`
		FROM allocatable_capabilities
		WHERE resource_id = ?
		ORDER BY from_date, id`,
		string(resourceID),
	)
}

func (r *CapabilityRepository) query(ctx context.Context, query string, args ...any) ([]capability.AllocatableCapability, error) {
	rows, err := r.pool.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var out []capability.AllocatableCapability
	for rows.Next() {
		c, err := scanCapability(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCapability(s scanner) (capability.AllocatableCapability, error) {
	var (
		id, resourceID, doc, from, to string
	)
	if err := s.Scan(&id, &resourceID, &doc, &from, &to); err != nil {
		if err == sql.ErrNoRows {
			return capability.AllocatableCapability{}, err
		}
		return capability.AllocatableCapability{}, fmt.Errorf("failed to scan capability: %w", err)
	}

	var c capability.Capability
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return capability.AllocatableCapability{}, fmt.Errorf("failed to decode capability: %w", err)
	}
	fromTime, err := parseTime(from)
	if err != nil {
		return capability.AllocatableCapability{}, err
	}
	toTime, err := parseTime(to)
	if err != nil {
		return capability.AllocatableCapability{}, err
	}
	return capability.AllocatableCapability{
		ID:         capability.AllocatableCapabilityID(id),
		ResourceID: availability.ResourceID(resourceID),
		Capability: c,
		Validity:   timeslot.TimeSlot{From: fromTime, To: toTime},
	}, nil
}
