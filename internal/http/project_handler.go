package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/resource-scheduler/internal/application"
	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/planning"
	"github.com/example/resource-scheduler/internal/simulation"
	"github.com/example/resource-scheduler/internal/timeslot"
)

type projectService interface {
	AddNewProject(ctx context.Context, name string, stages ...planning.Stage) (planning.Project, error)
	DefineProjectStages(ctx context.Context, id planning.ProjectID, stages ...planning.Stage) (planning.Project, error)
	AddDemands(ctx context.Context, id planning.ProjectID, demands ...planning.Demand) (planning.Project, error)
	PlanCriticalStages(ctx context.Context, id planning.ProjectID, pins map[string]timeslot.TimeSlot) (planning.Project, error)
	PlanFromStart(ctx context.Context, id planning.ProjectID, start time.Time) (planning.Project, error)
	Load(ctx context.Context, id planning.ProjectID) (planning.Project, error)
	List(ctx context.Context) ([]planning.Project, error)
	Feasibility(ctx context.Context, id planning.ProjectID, capabilities *application.CapabilityFacade, extra simulation.SimulatedCapabilities) (application.SimulationResult, error)
}

type ProjectHandler struct {
	service      projectService
	capabilities *application.CapabilityFacade
	responder    responder
	logger       *slog.Logger
}

// NewProjectHandler builds the handler. capabilities may be nil, in which case
// feasibility checks are unavailable.
func NewProjectHandler(service projectService, capabilities *application.CapabilityFacade, logger *slog.Logger) *ProjectHandler {
	base := defaultLogger(logger)
	return &ProjectHandler{service: service, capabilities: capabilities, responder: newResponder(base), logger: base}
}

func (h *ProjectHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ProjectHandler", operation, attrs...)
}

func (h *ProjectHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// Create handles POST /projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	ctx := r.Context()

	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(ctx, "Create", "error_kind", "bad_request").ErrorContext(ctx, "failed to decode project request", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	stages, err := toStages(req.Stages)
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(ctx, "Create", "name", req.Name)
	project, err := h.service.AddNewProject(ctx, req.Name, stages...)
	if err != nil {
		logger.ErrorContext(ctx, "project creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	logger.With("project_id", project.ID).InfoContext(ctx, "project created")
	w.Header().Set("Location", "/projects/"+string(project.ID))
	h.responder.writeJSON(ctx, w, http.StatusCreated, toProjectDTO(project))
}

// List handles GET /projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	ctx := r.Context()

	projects, err := h.service.List(ctx)
	if err != nil {
		h.log(ctx, "List").ErrorContext(ctx, "project listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	resp := projectsResponse{Projects: make([]projectDTO, 0, len(projects))}
	for _, p := range projects {
		resp.Projects = append(resp.Projects, toProjectDTO(p))
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, resp)
}

// Get handles GET /projects/{id}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	ctx := r.Context()
	id := planning.ProjectID(chi.URLParam(r, "id"))

	project, err := h.service.Load(ctx, id)
	if err != nil {
		h.log(ctx, "Get", "project_id", id).ErrorContext(ctx, "project lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toProjectDTO(project))
}

// DefineStages handles PUT /projects/{id}/stages.
func (h *ProjectHandler) DefineStages(w http.ResponseWriter, r *http.Request) {
	var req defineStagesRequest
	h.update(w, r, "DefineStages", &req, func(ctx context.Context, id planning.ProjectID) (planning.Project, error) {
		stages, err := toStages(req.Stages)
		if err != nil {
			return planning.Project{}, err
		}
		return h.service.DefineProjectStages(ctx, id, stages...)
	})
}

// AddDemands handles POST /projects/{id}/demands.
func (h *ProjectHandler) AddDemands(w http.ResponseWriter, r *http.Request) {
	var req addDemandsRequest
	h.update(w, r, "AddDemands", &req, func(ctx context.Context, id planning.ProjectID) (planning.Project, error) {
		demands := make([]planning.Demand, 0, len(req.Demands))
		for _, c := range req.Demands {
			demands = append(demands, planning.DemandFor(c.toCapability()))
		}
		return h.service.AddDemands(ctx, id, demands...)
	})
}

// PlanCriticalStages handles POST /projects/{id}/critical-stages.
func (h *ProjectHandler) PlanCriticalStages(w http.ResponseWriter, r *http.Request) {
	var req criticalStagesRequest
	h.update(w, r, "PlanCriticalStages", &req, func(ctx context.Context, id planning.ProjectID) (planning.Project, error) {
		pins := make(map[string]timeslot.TimeSlot, len(req.Stages))
		for name, slot := range req.Stages {
			pins[name] = slot.toSlot()
		}
		return h.service.PlanCriticalStages(ctx, id, pins)
	})
}

// PlanFromStart handles POST /projects/{id}/schedule.
func (h *ProjectHandler) PlanFromStart(w http.ResponseWriter, r *http.Request) {
	var req planFromStartRequest
	h.update(w, r, "PlanFromStart", &req, func(ctx context.Context, id planning.ProjectID) (planning.Project, error) {
		return h.service.PlanFromStart(ctx, id, req.Start.UTC())
	})
}

var errInputRejected = errors.New("input rejected")

func (h *ProjectHandler) update(w http.ResponseWriter, r *http.Request, operation string, req any, apply func(context.Context, planning.ProjectID) (planning.Project, error)) {
	if !h.ready(w) {
		return
	}
	ctx := r.Context()
	id := planning.ProjectID(chi.URLParam(r, "id"))

	if err := decodeJSON(w, r, req); err != nil {
		h.log(ctx, operation, "project_id", id, "error_kind", "bad_request").ErrorContext(ctx, "failed to decode project update", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(ctx, operation, "project_id", id)
	project, err := apply(ctx, id)
	if errors.Is(err, errInputRejected) {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "project update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "project updated")
	h.responder.writeJSON(ctx, w, http.StatusOK, toProjectDTO(project))
}

// Feasibility handles POST /projects/{id}/feasibility. The body is optional
// and may add hypothetical capabilities to the free catalog.
func (h *ProjectHandler) Feasibility(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	ctx := r.Context()
	id := planning.ProjectID(chi.URLParam(r, "id"))

	if h.capabilities == nil {
		h.responder.writeError(ctx, w, http.StatusNotImplemented, errors.New("feasibility checks are not configured"))
		return
	}

	var req feasibilityRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.log(ctx, "Feasibility", "project_id", id, "error_kind", "bad_request").ErrorContext(ctx, "failed to decode feasibility request", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	extra := simulation.None()
	for _, e := range req.Extra {
		extra = extra.Add(simulation.AvailableResourceCapability{
			ResourceID: availability.ResourceID(e.ResourceID),
			Capability: e.Capability.toCapability(),
			Slot:       e.toSlot(),
		})
	}

	result, err := h.service.Feasibility(ctx, id, h.capabilities, extra)
	if err != nil {
		h.log(ctx, "Feasibility", "project_id", id).ErrorContext(ctx, "feasibility check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toFeasibilityDTO(result))
}

type stageDTO struct {
	Name      string          `json:"name"`
	Duration  string          `json:"duration"`
	DependsOn []string        `json:"depends_on,omitempty"`
	Demands   []capabilityDTO `json:"demands,omitempty"`
}

func toStages(in []stageDTO) ([]planning.Stage, error) {
	stages := make([]planning.Stage, 0, len(in))
	for i, s := range in {
		d, err := time.ParseDuration(strings.TrimSpace(s.Duration))
		if err != nil {
			return nil, fmt.Errorf("%w: stages[%d].duration %q is not a duration", errInputRejected, i, s.Duration)
		}
		stage := planning.NewStage(strings.TrimSpace(s.Name)).OfDuration(d)
		for _, dep := range s.DependsOn {
			stage = stage.DependsOnStage(dep)
		}
		for _, c := range s.Demands {
			stage = stage.WithDemands(planning.DemandFor(c.toCapability()))
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

type createProjectRequest struct {
	Name   string     `json:"name"`
	Stages []stageDTO `json:"stages,omitempty"`
}

type defineStagesRequest struct {
	Stages []stageDTO `json:"stages"`
}

type addDemandsRequest struct {
	Demands []capabilityDTO `json:"demands"`
}

type criticalStagesRequest struct {
	Stages map[string]slotDTO `json:"stages"`
}

type planFromStartRequest struct {
	Start time.Time `json:"start"`
}

type extraCapabilityDTO struct {
	slotDTO
	ResourceID string        `json:"resource_id"`
	Capability capabilityDTO `json:"capability"`
}

type feasibilityRequest struct {
	Extra []extraCapabilityDTO `json:"extra,omitempty"`
}

type projectDTO struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Stages         []stageDTO         `json:"stages"`
	Demands        []capabilityDTO    `json:"demands"`
	CriticalStages map[string]slotDTO `json:"critical_stages"`
	Schedule       map[string]slotDTO `json:"schedule"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

type projectsResponse struct {
	Projects []projectDTO `json:"projects"`
}

func toProjectDTO(p planning.Project) projectDTO {
	out := projectDTO{
		ID:             string(p.ID),
		Name:           p.Name,
		Stages:         make([]stageDTO, 0, len(p.Stages)),
		Demands:        make([]capabilityDTO, 0, len(p.Demands)),
		CriticalStages: make(map[string]slotDTO, len(p.CriticalStages)),
		Schedule:       make(map[string]slotDTO),
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
	for _, s := range p.Stages {
		dto := stageDTO{Name: s.Name, Duration: s.Duration.String(), DependsOn: s.DependsOn}
		for _, d := range s.Demands {
			dto.Demands = append(dto.Demands, toCapabilityDTO(d.Capability))
		}
		out.Stages = append(out.Stages, dto)
	}
	for _, d := range p.Demands {
		out.Demands = append(out.Demands, toCapabilityDTO(d.Capability))
	}
	for name, slot := range p.CriticalStages {
		out.CriticalStages[name] = toSlotDTO(slot)
	}
	for name, slot := range p.Schedule.AsMap() {
		out.Schedule[name] = toSlotDTO(slot)
	}
	return out
}

type demandDTO struct {
	Capability capabilityDTO `json:"capability"`
	Slot       slotDTO       `json:"slot"`
}

type assignmentDTO struct {
	Demand     int           `json:"demand"`
	ResourceID string        `json:"resource_id"`
	Capability capabilityDTO `json:"capability"`
	Slot       slotDTO       `json:"slot"`
}

type feasibilityDTO struct {
	Satisfied   bool            `json:"satisfied"`
	Assignments []assignmentDTO `json:"assignments"`
	Unmet       []demandDTO     `json:"unmet"`
}

func toFeasibilityDTO(result application.SimulationResult) feasibilityDTO {
	out := feasibilityDTO{
		Satisfied:   result.Satisfied,
		Assignments: make([]assignmentDTO, 0, len(result.Assignments)),
		Unmet:       make([]demandDTO, 0, len(result.Unmet)),
	}
	indexes := make([]int, 0, len(result.Assignments))
	for i := range result.Assignments {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	for _, i := range indexes {
		entry := result.Assignments[i]
		out.Assignments = append(out.Assignments, assignmentDTO{
			Demand:     i,
			ResourceID: string(entry.ResourceID),
			Capability: toCapabilityDTO(entry.Capability),
			Slot:       toSlotDTO(entry.Slot),
		})
	}
	for _, d := range result.Unmet {
		out.Unmet = append(out.Unmet, demandDTO{Capability: toCapabilityDTO(d.Capability), Slot: toSlotDTO(d.Slot)})
	}
	return out
}
