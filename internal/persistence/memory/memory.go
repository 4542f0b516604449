// Package memory implements the persistence contracts with in-process maps.
// It backs tests and the single-node "memory" storage driver. Units of work
// run one at a time, range queries scan every row, and nothing survives the
// process, so the driver suits trials and CLI dry runs rather than production
// volumes.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/capability"
	"github.com/example/resource-scheduler/internal/persistence"
	"github.com/example/resource-scheduler/internal/planning"
	"github.com/example/resource-scheduler/internal/timeslot"
)

type state struct {
	availabilities map[availability.SegmentID]availability.AvailabilityResource
	capabilities   map[capability.AllocatableCapabilityID]capability.AllocatableCapability
	projects       map[planning.ProjectID]planning.Project
}

func newState() state {
	return state{
		availabilities: make(map[availability.SegmentID]availability.AvailabilityResource),
		capabilities:   make(map[capability.AllocatableCapabilityID]capability.AllocatableCapability),
		projects:       make(map[planning.ProjectID]planning.Project),
	}
}

// prior holds the value a key had before the current unit of work first
// wrote it.
type prior[K comparable, V any] map[K]priorValue[V]

type priorValue[V any] struct {
	value   V
	existed bool
}

func remember[K comparable, V any](p prior[K, V], m map[K]V, key K) {
	if _, seen := p[key]; seen {
		return
	}
	v, ok := m[key]
	p[key] = priorValue[V]{value: v, existed: ok}
}

func restore[K comparable, V any](p prior[K, V], m map[K]V) {
	for key, old := range p {
		if old.existed {
			m[key] = old.value
		} else {
			delete(m, key)
		}
	}
}

// journal records the keys one unit of work changed, so rolling back costs
// as much as the work itself rather than the size of the store.
type journal struct {
	availabilities prior[availability.SegmentID, availability.AvailabilityResource]
	capabilities   prior[capability.AllocatableCapabilityID, capability.AllocatableCapability]
	projects       prior[planning.ProjectID, planning.Project]
}

func newJournal() *journal {
	return &journal{
		availabilities: make(prior[availability.SegmentID, availability.AvailabilityResource]),
		capabilities:   make(prior[capability.AllocatableCapabilityID, capability.AllocatableCapability]),
		projects:       make(prior[planning.ProjectID, planning.Project]),
	}
}

func (j *journal) rollback(data *state) {
	restore(j.availabilities, data.availabilities)
	restore(j.capabilities, data.capabilities)
	restore(j.projects, data.projects)
}

// writer is the view of the state handed to repository writes. Every put is
// journaled.
type writer struct {
	data    *state
	journal *journal
}

func (w writer) putAvailability(row availability.AvailabilityResource) {
	remember(w.journal.availabilities, w.data.availabilities, row.ID)
	w.data.availabilities[row.ID] = row
}

func (w writer) putCapability(c capability.AllocatableCapability) {
	remember(w.journal.capabilities, w.data.capabilities, c.ID)
	w.data.capabilities[c.ID] = c
}

func (w writer) putProject(p planning.Project) {
	remember(w.journal.projects, w.data.projects, p.ID)
	w.data.projects[p.ID] = p
}

// Storage keeps every repository over one shared state.
type Storage struct {
	// txMu serialises units of work; mu guards data. journal belongs to the
	// unit of work holding txMu.
	txMu    sync.Mutex
	mu      sync.RWMutex
	data    state
	journal *journal

	Availability *AvailabilityRepository
	ReadModel    *AvailabilityReadModel
	Capabilities *CapabilityRepository
	Projects     *ProjectRepository
}

var (
	_ persistence.Transactor             = (*Storage)(nil)
	_ persistence.AvailabilityRepository = (*AvailabilityRepository)(nil)
	_ persistence.AvailabilityReadModel  = (*AvailabilityReadModel)(nil)
	_ persistence.CapabilityRepository   = (*CapabilityRepository)(nil)
	_ persistence.ProjectRepository      = (*ProjectRepository)(nil)
)

// New returns empty storage.
func New() *Storage {
	s := &Storage{data: newState()}
	s.Availability = &AvailabilityRepository{store: s}
	s.ReadModel = &AvailabilityReadModel{store: s}
	s.Capabilities = &CapabilityRepository{store: s}
	s.Projects = &ProjectRepository{store: s}
	return s
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// Migrate is a no-op.
func (s *Storage) Migrate(context.Context) error {
	return nil
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error {
	return nil
}

type txMarker struct{}

// WithinTransaction runs fn with exclusive write access. When fn fails or
// panics every change it made is undone from the journal. Nested calls join
// the outer unit.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, _ := ctx.Value(txMarker{}).(*Storage); owner == s {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.journal = newJournal()
	committed := false
	defer func() {
		s.mu.Lock()
		if !committed {
			s.journal.rollback(&s.data)
		}
		s.journal = nil
		s.mu.Unlock()
	}()

	if err := fn(context.WithValue(ctx, txMarker{}, s)); err != nil {
		return err
	}
	committed = true
	return nil
}

// write runs fn under the data lock inside a unit of work.
func (s *Storage) write(ctx context.Context, fn func(w writer) error) error {
	return s.WithinTransaction(ctx, func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(writer{data: &s.data, journal: s.journal})
	})
}

func (s *Storage) read(fn func(data state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

// AvailabilityRepository stores availability rows keyed by segment.
type AvailabilityRepository struct {
	store *Storage
}

// SaveNewGrouped inserts every row or none of them.
func (r *AvailabilityRepository) SaveNewGrouped(ctx context.Context, group availability.ResourceGroupedAvailability) error {
	return r.store.write(ctx, func(w writer) error {
		rows := group.Resources()
		for _, row := range rows {
			if _, ok := w.data.availabilities[row.ID]; ok {
				return persistence.ErrDuplicate
			}
		}
		for _, row := range rows {
			w.putAvailability(row)
		}
		return nil
	})
}

// SaveGroupedCheckingVersion writes the group only if no row changed since it was loaded.
func (r *AvailabilityRepository) SaveGroupedCheckingVersion(ctx context.Context, group availability.ResourceGroupedAvailability) (bool, error) {
	if group.IsEmpty() {
		return false, nil
	}
	saved := false
	err := r.store.write(ctx, func(w writer) error {
		rows := group.Resources()
		for _, row := range rows {
			stored, ok := w.data.availabilities[row.ID]
			expected, loaded := group.LoadedVersion(row.ID)
			if !ok || !loaded || stored.Version != expected {
				return nil
			}
		}
		for _, row := range rows {
			w.putAvailability(row)
		}
		saved = true
		return nil
	})
	return saved, err
}

// LoadAllWithinSlot returns the rows of a resource lying inside slot.
func (r *AvailabilityRepository) LoadAllWithinSlot(_ context.Context, resourceID availability.ResourceID, slot timeslot.TimeSlot) ([]availability.AvailabilityResource, error) {
	return r.filter(func(row availability.AvailabilityResource) bool {
		return row.ResourceID == resourceID && row.Slot.Within(slot)
	}), nil
}

// LoadAllByParentIDWithinSlot returns the rows of every child of parentID lying inside slot.
func (r *AvailabilityRepository) LoadAllByParentIDWithinSlot(_ context.Context, parentID availability.ResourceID, slot timeslot.TimeSlot) ([]availability.AvailabilityResource, error) {
	return r.filter(func(row availability.AvailabilityResource) bool {
		return row.ParentID == parentID && row.Slot.Within(slot)
	}), nil
}

func (r *AvailabilityRepository) filter(keep func(availability.AvailabilityResource) bool) []availability.AvailabilityResource {
	var out []availability.AvailabilityResource
	r.store.read(func(data state) {
		for _, row := range data.availabilities {
			if keep(row) {
				out = append(out, row)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].ResourceID != out[j].ResourceID {
			return out[i].ResourceID < out[j].ResourceID
		}
		return out[i].Slot.From.Before(out[j].Slot.From)
	})
	return out
}

// AvailabilityReadModel projects stored rows into calendars.
type AvailabilityReadModel struct {
	store *Storage
}

// Load returns the calendar of one resource within the window.
func (m *AvailabilityReadModel) Load(ctx context.Context, resourceID availability.ResourceID, within timeslot.TimeSlot) (availability.Calendar, error) {
	rows, err := m.store.Availability.LoadAllWithinSlot(ctx, resourceID, within)
	if err != nil {
		return availability.Calendar{}, err
	}
	return availability.CalendarFromRows(resourceID, rows), nil
}

// LoadAll returns calendars for every requested resource.
func (m *AvailabilityReadModel) LoadAll(_ context.Context, resourceIDs []availability.ResourceID, within timeslot.TimeSlot) (availability.Calendars, error) {
	wanted := make(map[availability.ResourceID]bool, len(resourceIDs))
	for _, id := range resourceIDs {
		wanted[id] = true
	}
	rows := m.store.Availability.filter(func(row availability.AvailabilityResource) bool {
		return wanted[row.ResourceID] && row.Slot.Within(within)
	})
	return availability.CalendarsFromRows(resourceIDs, rows), nil
}

// CapabilityRepository stores the capability catalog.
type CapabilityRepository struct {
	store *Storage
}

// SaveAll inserts or replaces every entry.
func (r *CapabilityRepository) SaveAll(ctx context.Context, caps []capability.AllocatableCapability) error {
	return r.store.write(ctx, func(w writer) error {
		for _, c := range caps {
			w.putCapability(c)
		}
		return nil
	})
}

// FindByID returns persistence.ErrNotFound for unknown entries.
func (r *CapabilityRepository) FindByID(_ context.Context, id capability.AllocatableCapabilityID) (capability.AllocatableCapability, error) {
	var (
		c  capability.AllocatableCapability
		ok bool
	)
	r.store.read(func(data state) {
		c, ok = data.capabilities[id]
	})
	if !ok {
		return capability.AllocatableCapability{}, persistence.ErrNotFound
	}
	return c, nil
}

// FindCapabilities returns entries offering c whose validity overlaps slot.
func (r *CapabilityRepository) FindCapabilities(_ context.Context, c capability.Capability, slot timeslot.TimeSlot) ([]capability.AllocatableCapability, error) {
	return capability.Filter(r.all(), c, slot), nil
}

// FindByResource lists every entry of a resource.
func (r *CapabilityRepository) FindByResource(_ context.Context, resourceID availability.ResourceID) ([]capability.AllocatableCapability, error) {
	var out []capability.AllocatableCapability
	for _, c := range r.all() {
		if c.ResourceID == resourceID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *CapabilityRepository) all() []capability.AllocatableCapability {
	var out []capability.AllocatableCapability
	r.store.read(func(data state) {
		for _, c := range data.capabilities {
			out = append(out, c)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Validity.From.Equal(out[j].Validity.From) {
			return out[i].Validity.From.Before(out[j].Validity.From)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ProjectRepository stores projects.
type ProjectRepository struct {
	store *Storage
}

// Save inserts or replaces a project.
func (r *ProjectRepository) Save(ctx context.Context, project planning.Project) error {
	return r.store.write(ctx, func(w writer) error {
		w.putProject(cloneProject(project))
		return nil
	})
}

// Get returns persistence.ErrNotFound for unknown projects.
func (r *ProjectRepository) Get(_ context.Context, id planning.ProjectID) (planning.Project, error) {
	var (
		p  planning.Project
		ok bool
	)
	r.store.read(func(data state) {
		p, ok = data.projects[id]
	})
	if !ok {
		return planning.Project{}, persistence.ErrNotFound
	}
	return cloneProject(p), nil
}

// List returns every project ordered by creation time.
func (r *ProjectRepository) List(_ context.Context) ([]planning.Project, error) {
	var out []planning.Project
	r.store.read(func(data state) {
		for _, p := range data.projects {
			out = append(out, cloneProject(p))
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func cloneProject(p planning.Project) planning.Project {
	clone := p
	clone.Stages = make([]planning.Stage, len(p.Stages))
	for i, s := range p.Stages {
		clone.Stages[i] = s.WithDemands()
	}
	clone.Demands = p.Demands.With()
	clone.CriticalStages = make(map[string]timeslot.TimeSlot, len(p.CriticalStages))
	for k, v := range p.CriticalStages {
		clone.CriticalStages[k] = v
	}
	return clone
}
