package http

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/example/personal-calendar/internal/application"
)

type exportService interface {
	ExportEvents(ctx context.Context) ([]application.Event, error)
}

// CalendarEncoder renders events as an iCalendar document.
type CalendarEncoder interface {
	Encode(w io.Writer, events []application.Event) error
}

// CalendarHandler serves the iCalendar export and the label catalogue.
type CalendarHandler struct {
	service   exportService
	encoder   CalendarEncoder
	responder responder
	logger    *slog.Logger
}

func NewCalendarHandler(service exportService, encoder CalendarEncoder, logger *slog.Logger) *CalendarHandler {
	base := defaultLogger(logger)
	return &CalendarHandler{service: service, encoder: encoder, responder: newResponder(base), logger: base}
}

func (h *CalendarHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil || h.encoder == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	events, err := h.service.ExportEvents(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	if err := h.encoder.Encode(&buf, events); err != nil {
		handlerLogger(r.Context(), h.logger, "CalendarHandler", "Export").ErrorContext(r.Context(), "failed to encode calendar", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, errUnexpectedError)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type labelDTO struct {
	Name  string            `json:"name"`
	Style application.Style `json:"style"`
}

type categoriesResponse struct {
	Categories []labelDTO `json:"categories"`
	Priorities []labelDTO `json:"priorities"`
	Statuses   []labelDTO `json:"statuses"`
}

func (h *CalendarHandler) Categories(w http.ResponseWriter, r *http.Request) {
	var resp categoriesResponse
	for _, c := range application.Categories() {
		resp.Categories = append(resp.Categories, labelDTO{Name: c.String(), Style: c.Style()})
	}
	for _, p := range application.Priorities() {
		resp.Priorities = append(resp.Priorities, labelDTO{Name: p.String(), Style: p.Style()})
	}
	for _, s := range application.Statuses() {
		resp.Statuses = append(resp.Statuses, labelDTO{Name: s.String(), Style: s.Style()})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}
