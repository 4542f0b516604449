package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/resource-scheduler/internal/planning"
	"github.com/example/resource-scheduler/internal/timeslot"
)

// ProjectRepository stores each project as one JSON document.
type ProjectRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewProjectRepository creates the repository.
func NewProjectRepository(pool *ConnectionPool) *ProjectRepository {
	return &ProjectRepository{pool: pool, mapper: NewErrorMapper()}
}

type projectDocument struct {
	Stages         []planning.Stage             `json:"stages"`
	Demands        []planning.Demand            `json:"demands,omitempty"`
	CriticalStages map[string]timeslot.TimeSlot `json:"critical_stages,omitempty"`
	Schedule       map[string]timeslot.TimeSlot `json:"schedule,omitempty"`
}

// Save inserts the project or replaces the stored document.
func (r *ProjectRepository) Save(ctx context.Context, project planning.Project) error {
	doc, err := json.Marshal(projectDocument{
		Stages:         project.Stages,
		Demands:        project.Demands,
		CriticalStages: project.CriticalStages,
		Schedule:       project.Schedule.AsMap(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}

	_, err = r.pool.executor(ctx).ExecContext(ctx, `
		INSERT INTO projects (id, name, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			document = excluded.document,
			updated_at = excluded.updated_at`,
		string(project.ID),
		project.Name,
		string(doc),
		formatTime(project.CreatedAt),
		formatTime(project.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// Get returns persistence.ErrNotFound when the project does not exist.
func (r *ProjectRepository) Get(ctx context.Context, id planning.ProjectID) (planning.Project, error) {
	row := r.pool.executor(ctx).QueryRowContext(ctx,
		`SELECT id, name, document, created_at, updated_at FROM projects WHERE id = ?`, string(id))
	p, err := scanProject(row)
	if err != nil {
		return planning.Project{}, r.mapper.MapError(err)
	}
	return p, nil
}

// List returns every project ordered by creation time.
func (r *ProjectRepository) List(ctx context.Context) ([]planning.Project, error) {
	rows, err := r.pool.executor(ctx).QueryContext(ctx,
		`SELECT id, name, document, created_at, updated_at FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var out []planning.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return out, nil
}

func scanProject(s scanner) (planning.Project, error) {
	var id, name, doc, created, updated string
	if err := s.Scan(&id, &name, &doc, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return planning.Project{}, err
		}
		return planning.Project{}, fmt.Errorf("failed to scan project: %w", err)
	}

	var d projectDocument
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return planning.Project{}, fmt.Errorf("failed to decode project %s: %w", id, err)
	}
	createdAt, err := parseTime(created)
	if err != nil {
		return planning.Project{}, err
	}
	updatedAt, err := parseTime(updated)
	if err != nil {
		return planning.Project{}, err
	}

	critical := d.CriticalStages
	if critical == nil {
		critical = map[string]timeslot.TimeSlot{}
	}
	return planning.Project{
		ID:             planning.ProjectID(id),
		Name:           name,
		Stages:         d.Stages,
		Demands:        d.Demands,
		CriticalStages: critical,
		Schedule:       planning.NewSchedule(d.Schedule),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}
