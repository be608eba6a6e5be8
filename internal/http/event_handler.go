package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/personal-calendar/internal/application"
)

type eventService interface {
	Location() *time.Location
	CreateEvent(ctx context.Context, input application.EventInput) (application.Event, []application.ConflictWarning, error)
	GetEvent(ctx context.Context, id string) (application.Event, error)
	ListEvents(ctx context.Context, rangeStart, rangeEnd time.Time) ([]application.Event, error)
	SearchEvents(ctx context.Context, params application.SearchParams) ([]application.Event, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.Event, []application.ConflictWarning, error)
	DeleteEvent(ctx context.Context, params application.DeleteEventParams) error
}

// EventHandler serves the /events endpoints.
type EventHandler struct {
	service   eventService
	responder responder
	logger    *slog.Logger
}

func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	return &EventHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	loc := h.service.Location()
	fields := map[string]string{}
	start, end := parseRange(r.URL.Query(), loc, fields)
	if err := validationError(fields); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	events, err := h.service.ListEvents(r.Context(), start, end)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: toEventDTOs(events)})
}

func (h *EventHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	values := r.URL.Query()
	fields := map[string]string{}
	start, end := parseRange(values, h.service.Location(), fields)
	if err := validationError(fields); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	events, err := h.service.SearchEvents(r.Context(), application.SearchParams{
		Query: values.Get("q"),
		Start: start,
		End:   end,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: toEventDTOs(events)})
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	fields := map[string]string{}
	input := req.toInput(h.service.Location(), fields)
	if err := validationError(fields); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	event, warnings, err := h.service.CreateEvent(r.Context(), input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "event_id", event.ID, "warning_count", len(warnings)).InfoContext(r.Context(), "event created")
	h.renderEvent(r.Context(), w, event, warnings, http.StatusCreated)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	event, err := h.service.GetEvent(r.Context(), eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderEvent(r.Context(), w, event, nil, http.StatusOK)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	scope, err := application.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var req updateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "event_id", eventID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	fields := map[string]string{}
	params := req.toParams(eventID, scope, h.service.Location(), fields)
	if err := validationError(fields); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	event, warnings, err := h.service.UpdateEvent(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Update", "event_id", eventID, "scope", scope).InfoContext(r.Context(), "event updated")
	h.renderEvent(r.Context(), w, event, warnings, http.StatusOK)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	scope, err := application.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if err := h.service.DeleteEvent(r.Context(), application.DeleteEventParams{EventID: eventID, Scope: scope}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Delete", "event_id", eventID, "scope", scope).InfoContext(r.Context(), "event deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) renderEvent(ctx context.Context, w http.ResponseWriter, event application.Event, warnings []application.ConflictWarning, status int) {
	h.responder.writeJSON(ctx, w, status, eventResponse{
		Event:    toEventDTO(event),
		Warnings: toWarningDTOs(warnings),
	})
}

type createEventRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Location    string         `json:"location"`
	Start       string         `json:"start"`
	End         string         `json:"end"`
	AllDay      bool           `json:"all_day"`
	Category    string         `json:"category"`
	Priority    string         `json:"priority"`
	Status      string         `json:"status"`
	Recurrence  *recurrenceDTO `json:"recurrence"`
}

func (r createEventRequest) toInput(loc *time.Location, fields map[string]string) application.EventInput {
	input := application.EventInput{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		AllDay:      r.AllDay,
		Category:    r.Category,
		Priority:    r.Priority,
		Status:      r.Status,
	}
	if strings.TrimSpace(r.Start) != "" {
		if start, err := parseInstant(r.Start, loc); err == nil {
			input.Start = start
		} else {
			fields["start"] = err.Error()
		}
	}
	if strings.TrimSpace(r.End) != "" {
		if end, err := parseInstant(r.End, loc); err == nil {
			input.End = &end
		} else {
			fields["end"] = err.Error()
		}
	}
	if r.Recurrence != nil {
		pattern := r.Recurrence.toPattern(loc, fields)
		input.Recurrence = &pattern
	}
	return input
}

type updateEventRequest struct {
	patchDTO
	Recurrence      *recurrenceDTO `json:"recurrence"`
	ClearRecurrence bool           `json:"clear_recurrence"`
}

func (r updateEventRequest) toParams(eventID string, scope application.Scope, loc *time.Location, fields map[string]string) application.UpdateEventParams {
	params := application.UpdateEventParams{
		EventID:         eventID,
		Scope:           scope,
		Patch:           r.patchDTO.toPatch(loc, fields),
		ClearRecurrence: r.ClearRecurrence,
	}
	if r.Recurrence != nil {
		pattern := r.Recurrence.toPattern(loc, fields)
		params.Recurrence = &pattern
	}
	return params
}

// parseRange reads the start and end query parameters. A date-only end
// covers the whole day.
func parseRange(values url.Values, loc *time.Location, fields map[string]string) (time.Time, time.Time) {
	var start, end time.Time
	if raw := strings.TrimSpace(values.Get("start")); raw != "" {
		ts, err := parseInstant(raw, loc)
		if err != nil {
			fields["start"] = err.Error()
		}
		start = ts
	}
	if raw := strings.TrimSpace(values.Get("end")); raw != "" {
		ts, err := parseInstant(raw, loc)
		if err != nil {
			fields["end"] = err.Error()
		} else if !strings.Contains(raw, "T") {
			ts = ts.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		end = ts
	}
	return start, end
}
