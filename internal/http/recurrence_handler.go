package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/personal-calendar/internal/application"
	"github.com/example/personal-calendar/internal/recurrence"
)

type patternService interface {
	Location() *time.Location
	ValidatePattern(p recurrence.Pattern) recurrence.ValidationResult
	DescribePattern(p recurrence.Pattern, dtstart time.Time) (application.PatternDescription, error)
}

// RecurrenceHandler checks and describes patterns without storing anything.
type RecurrenceHandler struct {
	service   patternService
	responder responder
}

func NewRecurrenceHandler(service patternService, logger *slog.Logger) *RecurrenceHandler {
	return &RecurrenceHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

type patternRequest struct {
	recurrenceDTO
	Start string `json:"start"`
}

type validationResultResponse struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type describeResponse struct {
	Description string `json:"description"`
	RRule       string `json:"rrule"`
}

func (h *RecurrenceHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	pattern, _, ok := h.decode(w, r)
	if !ok {
		return
	}

	result := h.service.ValidatePattern(pattern)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, validationResultResponse{
		IsValid:  result.IsValid,
		Errors:   nonNil(result.Errors),
		Warnings: nonNil(result.Warnings),
	})
}

func (h *RecurrenceHandler) Describe(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	pattern, start, ok := h.decode(w, r)
	if !ok {
		return
	}

	description, err := h.service.DescribePattern(pattern, start)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, describeResponse{
		Description: description.Description,
		RRule:       description.RRule,
	})
}

func (h *RecurrenceHandler) decode(w http.ResponseWriter, r *http.Request) (recurrence.Pattern, time.Time, bool) {
	var req patternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return recurrence.Pattern{}, time.Time{}, false
	}

	loc := h.service.Location()
	fields := map[string]string{}
	pattern := req.toPattern(loc, fields)
	var start time.Time
	if strings.TrimSpace(req.Start) != "" {
		ts, err := parseInstant(req.Start, loc)
		if err != nil {
			fields["start"] = err.Error()
		}
		start = ts
	}
	if err := validationError(fields); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return recurrence.Pattern{}, time.Time{}, false
	}
	return pattern, start, true
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
