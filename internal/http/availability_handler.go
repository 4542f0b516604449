package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/resource-scheduler/internal/application"
	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/recurrence"
	"github.com/example/resource-scheduler/internal/timeslot"
)

type availabilityService interface {
	CreateResourceSlots(ctx context.Context, resourceID availability.ResourceID, slot timeslot.TimeSlot, parentID availability.ResourceID) error
	CreateRecurringResourceSlots(ctx context.Context, resourceID availability.ResourceID, rule recurrence.Rule, within timeslot.TimeSlot, parentID availability.ResourceID) (int, error)
	Block(ctx context.Context, resourceID availability.ResourceID, slot timeslot.TimeSlot, owner availability.Owner) (bool, error)
	Release(ctx context.Context, resourceID availability.ResourceID, slot timeslot.TimeSlot, owner availability.Owner) (bool, error)
	Disable(ctx context.Context, resourceID availability.ResourceID, slot timeslot.TimeSlot, owner availability.Owner) (bool, error)
	Enable(ctx context.Context, resourceID availability.ResourceID, slot timeslot.TimeSlot, owner availability.Owner) (bool, error)
	Find(ctx context.Context, resourceID availability.ResourceID, within timeslot.TimeSlot) (availability.ResourceGroupedAvailability, error)
	FindByParentID(ctx context.Context, parentID availability.ResourceID, within timeslot.TimeSlot) (availability.ResourceGroupedAvailability, error)
	LoadCalendar(ctx context.Context, resourceID availability.ResourceID, within timeslot.TimeSlot) (availability.Calendar, error)
	LoadCalendars(ctx context.Context, resourceIDs []availability.ResourceID, within timeslot.TimeSlot) (availability.Calendars, error)
}

type AvailabilityHandler struct {
	service   availabilityService
	responder responder
	logger    *slog.Logger
}

func NewAvailabilityHandler(service availabilityService, logger *slog.Logger) *AvailabilityHandler {
	base := defaultLogger(logger)
	return &AvailabilityHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AvailabilityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AvailabilityHandler", operation, attrs...)
}

func (h *AvailabilityHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// CreateSlots handles POST /resources/{id}/slots.
func (h *AvailabilityHandler) CreateSlots(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	ctx := r.Context()
	resourceID := availability.ResourceID(chi.URLParam(r, "id"))

	var req createSlotsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(ctx, "CreateSlots", "resource_id", resourceID, "error_kind", "bad_request").ErrorContext(ctx, "failed to decode slots request", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(ctx, "CreateSlots", "resource_id", resourceID)
	err := h.service.CreateResourceSlots(ctx, resourceID, req.slot(), availability.ResourceID(strings.TrimSpace(req.ParentID)))
	if err != nil {
		logger.ErrorContext(ctx, "slot creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "slots created")
	h.responder.writeJSON(ctx, w, http.StatusCreated, resultResponse{Result: true})
}

// CreateRecurringSlots handles POST /resources/{id}/slots/recurring.
func (h *AvailabilityHandler) CreateRecurringSlots(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	ctx := r.Context()
	resourceID := availability.ResourceID(chi.URLParam(r, "id"))

	var req recurringSlotsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(ctx, "CreateRecurringSlots", "resource_id", resourceID, "error_kind", "bad_request").ErrorContext(ctx, "failed to decode recurring slots request", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(ctx, "CreateRecurringSlots", "resource_id", resourceID)
	rule, err := req.rule()
	if err != nil {
		logger.WarnContext(ctx, "recurring rule rejected", "error", err, "error_kind", "bad_request")
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	created, err := h.service.CreateRecurringResourceSlots(ctx, resourceID, rule, req.slot(), availability.ResourceID(strings.TrimSpace(req.ParentID)))
	if err != nil {
		logger.ErrorContext(ctx, "recurring slot creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "recurring slots created", "windows", created)
	h.responder.writeJSON(ctx, w, http.StatusCreated, recurringSlotsResponse{Result: true, Windows: created})
}

// Block handles POST /resources/{id}/block.
func (h *AvailabilityHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "Block", availabilityService.Block)
}

// Release handles POST /resources/{id}/release.
func (h *AvailabilityHandler) Release(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "Release", availabilityService.Release)
}

// Disable handles POST /resources/{id}/disable.
func (h *AvailabilityHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "Disable", availabilityService.Disable)
}

// Enable handles POST /resources/{id}/enable.
func (h *AvailabilityHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "Enable", availabilityService.Enable)
}

type changeFunc func(availabilityService, context.Context, availability.ResourceID, timeslot.TimeSlot, availability.Owner) (bool, error)

func (h *AvailabilityHandler) change(w http.ResponseWriter, r *http.Request, operation string, apply changeFunc) {
	if !h.ready(w) {
		return
	}
	ctx := r.Context()
	resourceID := availability.ResourceID(chi.URLParam(r, "id"))

	var req ownerSlotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(ctx, operation, "resource_id", resourceID, "error_kind", "bad_request").ErrorContext(ctx, "failed to decode availability change", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	owner := availability.Owner(strings.TrimSpace(req.Owner))
	logger := h.log(ctx, operation, "resource_id", resourceID, "owner", owner)

	ok, err := apply(h.service, ctx, resourceID, req.slot(), owner)
	if err != nil {
		logger.ErrorContext(ctx, "availability change failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	if !ok {
		logger.InfoContext(ctx, "availability change rejected")
		h.responder.writeRejected(ctx, w, "the slot is not fully available for this change")
		return
	}

	logger.InfoContext(ctx, "availability changed")
	h.responder.writeJSON(ctx, w, http.StatusOK, resultResponse{Result: true})
}

// Availability handles GET /resources/{id}/availability?from=&to=.
func (h *AvailabilityHandler) Availability(w http.ResponseWriter, r *http.Request) {
	h.find(w, r, "Availability", availabilityService.Find)
}

// ParentAvailability handles GET /parents/{id}/availability?from=&to=.
func (h *AvailabilityHandler) ParentAvailability(w http.ResponseWriter, r *http.Request) {
	h.find(w, r, "ParentAvailability", availabilityService.FindByParentID)
}

type findFunc func(availabilityService, context.Context, availability.ResourceID, timeslot.TimeSlot) (availability.ResourceGroupedAvailability, error)

func (h *AvailabilityHandler) find(w http.ResponseWriter, r *http.Request, operation string, load findFunc) {
	if !h.ready(w) {
		return
	}
	ctx := r.Context()
	id := availability.ResourceID(chi.URLParam(r, "id"))

	within, err := queryWindow(r)
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	group, err := load(h.service, ctx, id, within)
	if err != nil {
		h.log(ctx, operation, "resource_id", id).ErrorContext(ctx, "availability lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusOK, toGroupedDTO(group))
}

// Calendar handles GET /resources/{id}/calendar?from=&to=.
func (h *AvailabilityHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	ctx := r.Context()
	id := availability.ResourceID(chi.URLParam(r, "id"))

	within, err := queryWindow(r)
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	calendar, err := h.service.LoadCalendar(ctx, id, within)
	if err != nil {
		h.log(ctx, "Calendar", "resource_id", id).ErrorContext(ctx, "calendar lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusOK, toCalendarDTO(calendar))
}

// Calendars handles GET /calendars?resource_id=a&resource_id=b&from=&to=.
func (h *AvailabilityHandler) Calendars(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	ctx := r.Context()

	within, err := queryWindow(r)
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	var ids []availability.ResourceID
	for _, raw := range r.URL.Query()["resource_id"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				ids = append(ids, availability.ResourceID(part))
			}
		}
	}

	calendars, err := h.service.LoadCalendars(ctx, ids, within)
	if err != nil {
		h.log(ctx, "Calendars", "resources", len(ids)).ErrorContext(ctx, "calendar lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	resp := calendarsResponse{Calendars: make([]calendarDTO, 0, len(ids))}
	for _, id := range ids {
		resp.Calendars = append(resp.Calendars, toCalendarDTO(calendars.Get(id)))
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, resp)
}

type createSlotsRequest struct {
	slotDTO
	ParentID string `json:"parent_id,omitempty"`
}

func (r createSlotsRequest) slot() timeslot.TimeSlot { return r.slotDTO.toSlot() }

type recurringSlotsRequest struct {
	createSlotsRequest
	Frequency string   `json:"frequency"`
	Weekdays  []string `json:"weekdays,omitempty"`
	// StartTime is the local opening time as HH:MM.
	StartTime string `json:"start_time"`
	Duration  string `json:"duration"`
	TimeZone  string `json:"time_zone,omitempty"`
}

var errInvalidRule = errors.New("invalid recurrence rule")

func (r recurringSlotsRequest) rule() (recurrence.Rule, error) {
	freq, err := recurrence.ParseFrequency(r.Frequency)
	if err != nil {
		return recurrence.Rule{}, fmt.Errorf("%w: %v", errInvalidRule, err)
	}
	weekdays := make([]time.Weekday, 0, len(r.Weekdays))
	for _, name := range r.Weekdays {
		day, err := recurrence.ParseWeekday(name)
		if err != nil {
			return recurrence.Rule{}, fmt.Errorf("%w: %v", errInvalidRule, err)
		}
		weekdays = append(weekdays, day)
	}
	opens, err := time.Parse("15:04", strings.TrimSpace(r.StartTime))
	if err != nil {
		return recurrence.Rule{}, fmt.Errorf("%w: start_time %q is not HH:MM", errInvalidRule, r.StartTime)
	}
	d, err := time.ParseDuration(strings.TrimSpace(r.Duration))
	if err != nil {
		return recurrence.Rule{}, fmt.Errorf("%w: duration %q is not a duration", errInvalidRule, r.Duration)
	}
	loc := time.UTC
	if tz := strings.TrimSpace(r.TimeZone); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return recurrence.Rule{}, fmt.Errorf("%w: unknown time_zone %q", errInvalidRule, tz)
		}
	}
	return recurrence.Rule{
		Frequency:  freq,
		Weekdays:   weekdays,
		StartOfDay: time.Duration(opens.Hour())*time.Hour + time.Duration(opens.Minute())*time.Minute,
		Duration:   d,
		Location:   loc,
	}, nil
}

type recurringSlotsResponse struct {
	Result  bool `json:"result"`
	Windows int  `json:"windows"`
}

type ownerSlotRequest struct {
	slotDTO
	Owner string `json:"owner"`
}

func (r ownerSlotRequest) slot() timeslot.TimeSlot { return r.slotDTO.toSlot() }

type availabilityRowDTO struct {
	ID         string `json:"id"`
	ResourceID string `json:"resource_id"`
	ParentID   string `json:"parent_id,omitempty"`
	slotDTO
	TakenBy  string `json:"taken_by,omitempty"`
	Disabled bool   `json:"disabled"`
	Version  int64  `json:"version"`
}

type groupedDTO struct {
	Within            slotDTO              `json:"within"`
	EntirelyAvailable bool                 `json:"entirely_available"`
	Rows              []availabilityRowDTO `json:"rows"`
}

func toGroupedDTO(g availability.ResourceGroupedAvailability) groupedDTO {
	rows := g.Resources()
	out := groupedDTO{
		Within:            toSlotDTO(g.Within()),
		EntirelyAvailable: g.IsEntirelyAvailable(),
		Rows:              make([]availabilityRowDTO, 0, len(rows)),
	}
	for _, row := range rows {
		out.Rows = append(out.Rows, availabilityRowDTO{
			ID:         string(row.ID),
			ResourceID: string(row.ResourceID),
			ParentID:   string(row.ParentID),
			slotDTO:    toSlotDTO(row.Slot),
			TakenBy:    string(row.Blockade.TakenBy),
			Disabled:   row.Blockade.Disabled,
			Version:    row.Version,
		})
	}
	return out
}

type calendarDTO struct {
	ResourceID string               `json:"resource_id"`
	Available  []slotDTO            `json:"available"`
	Taken      map[string][]slotDTO `json:"taken"`
}

type calendarsResponse struct {
	Calendars []calendarDTO `json:"calendars"`
}

func toCalendarDTO(c availability.Calendar) calendarDTO {
	out := calendarDTO{
		ResourceID: string(c.ResourceID),
		Available:  toSlotDTOs(c.AvailableSlots()),
		Taken:      make(map[string][]slotDTO),
	}
	for _, owner := range c.Owners() {
		out.Taken[string(owner)] = toSlotDTOs(c.TakenBy(owner))
	}
	return out
}
