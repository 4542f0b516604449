package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/resource-scheduler/internal/application"
	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/capability"
	"github.com/example/resource-scheduler/internal/timeslot"
)

type capabilityService interface {
	ScheduleResourceCapabilities(ctx context.Context, resourceID availability.ResourceID, caps []capability.Capability, slot timeslot.TimeSlot) ([]capability.AllocatableCapabilityID, error)
	FindCapabilities(ctx context.Context, c capability.Capability, slot timeslot.TimeSlot) ([]capability.AllocatableCapability, error)
	FindAvailableCapabilities(ctx context.Context, c capability.Capability, slot timeslot.TimeSlot) ([]capability.AllocatableCapability, error)
	Allocate(ctx context.Context, c capability.Capability, slot timeslot.TimeSlot, owner availability.Owner) (capability.AllocatableCapability, bool, error)
}

type CapabilityHandler struct {
	service   capabilityService
	responder responder
	logger    *slog.Logger
}

func NewCapabilityHandler(service capabilityService, logger *slog.Logger) *CapabilityHandler {
	base := defaultLogger(logger)
	return &CapabilityHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *CapabilityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CapabilityHandler", operation, attrs...)
}

// Schedule handles POST /resources/{id}/capabilities.
func (h *CapabilityHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	resourceID := availability.ResourceID(chi.URLParam(r, "id"))

	var req scheduleCapabilitiesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(ctx, "Schedule", "resource_id", resourceID, "error_kind", "bad_request").ErrorContext(ctx, "failed to decode capabilities request", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	caps := make([]capability.Capability, 0, len(req.Capabilities))
	for _, c := range req.Capabilities {
		caps = append(caps, c.toCapability())
	}

	logger := h.log(ctx, "Schedule", "resource_id", resourceID, "capabilities", len(caps))
	ids, err := h.service.ScheduleResourceCapabilities(ctx, resourceID, caps, req.toSlot())
	if err != nil {
		logger.ErrorContext(ctx, "capability scheduling failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	resp := scheduleCapabilitiesResponse{IDs: make([]string, 0, len(ids))}
	for _, id := range ids {
		resp.IDs = append(resp.IDs, string(id))
	}
	logger.InfoContext(ctx, "capabilities scheduled")
	h.responder.writeJSON(ctx, w, http.StatusCreated, resp)
}

// Find handles GET /capabilities?name=&type=&from=&to=[&available=true].
func (h *CapabilityHandler) Find(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	within, err := queryWindow(r)
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	q := r.URL.Query()
	wanted := capabilityDTO{Name: q.Get("name"), Type: q.Get("type")}.toCapability()
	availableOnly, _ := strconv.ParseBool(strings.TrimSpace(q.Get("available")))

	find := h.service.FindCapabilities
	if availableOnly {
		find = h.service.FindAvailableCapabilities
	}
	entries, err := find(ctx, wanted, within)
	if err != nil {
		h.log(ctx, "Find", "capability", wanted.String()).ErrorContext(ctx, "capability lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	resp := capabilitiesResponse{Capabilities: make([]allocatableCapabilityDTO, 0, len(entries))}
	for _, e := range entries {
		resp.Capabilities = append(resp.Capabilities, toAllocatableCapabilityDTO(e))
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, resp)
}

// Allocate handles POST /allocations.
func (h *CapabilityHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	var req allocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(ctx, "Allocate", "error_kind", "bad_request").ErrorContext(ctx, "failed to decode allocation request", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	wanted := req.Capability.toCapability()
	owner := availability.Owner(strings.TrimSpace(req.Owner))
	logger := h.log(ctx, "Allocate", "capability", wanted.String(), "owner", owner)

	allocated, ok, err := h.service.Allocate(ctx, wanted, req.toSlot(), owner)
	if err != nil {
		logger.ErrorContext(ctx, "allocation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	if !ok {
		logger.InfoContext(ctx, "allocation rejected")
		h.responder.writeRejected(ctx, w, "no free capability covers the slot")
		return
	}

	logger.InfoContext(ctx, "capability allocated", "allocatable_capability_id", allocated.ID)
	dto := toAllocatableCapabilityDTO(allocated)
	h.responder.writeJSON(ctx, w, http.StatusOK, allocationResponse{Result: true, Allocation: &dto})
}

type scheduleCapabilitiesRequest struct {
	slotDTO
	Capabilities []capabilityDTO `json:"capabilities"`
}

type scheduleCapabilitiesResponse struct {
	IDs []string `json:"ids"`
}

type allocationRequest struct {
	slotDTO
	Capability capabilityDTO `json:"capability"`
	Owner      string        `json:"owner"`
}

type allocationResponse struct {
	Result     bool                      `json:"result"`
	Allocation *allocatableCapabilityDTO `json:"allocation,omitempty"`
}

type allocatableCapabilityDTO struct {
	ID         string        `json:"id"`
	ResourceID string        `json:"resource_id"`
	Capability capabilityDTO `json:"capability"`
	Validity   slotDTO       `json:"validity"`
}

type capabilitiesResponse struct {
	Capabilities []allocatableCapabilityDTO `json:"capabilities"`
}

func toAllocatableCapabilityDTO(c capability.AllocatableCapability) allocatableCapabilityDTO {
	return allocatableCapabilityDTO{
		ID:         string(c.ID),
		ResourceID: string(c.ResourceID),
		Capability: toCapabilityDTO(c.Capability),
		Validity:   toSlotDTO(c.Validity),
	}
}
