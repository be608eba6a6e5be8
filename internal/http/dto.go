package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"

	"github.com/example/personal-calendar/internal/application"
	"github.com/example/personal-calendar/internal/recurrence"
)

type eventDTO struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	Location      string            `json:"location,omitempty"`
	Start         string            `json:"start"`
	End           *string           `json:"end,omitempty"`
	AllDay        bool              `json:"all_day"`
	Category      string            `json:"category"`
	Priority      string            `json:"priority"`
	Status        string            `json:"status"`
	Style         application.Style `json:"style"`
	Recurrence    *recurrenceDTO    `json:"recurrence,omitempty"`
	ParentEventID string            `json:"parent_event_id,omitempty"`
	InstanceDate  *string           `json:"instance_date,omitempty"`
	Modifications []modificationDTO `json:"modifications,omitempty"`
	CreatedAt     string            `json:"created_at,omitempty"`
	UpdatedAt     string            `json:"updated_at,omitempty"`
}

type recurrenceDTO struct {
	Frequency   string   `json:"frequency"`
	Interval    *int     `json:"interval,omitempty"`
	EndType     string   `json:"end_type"`
	EndDate     string   `json:"end_date,omitempty"`
	Occurrences int      `json:"occurrences,omitempty"`
	WeekDays    []int    `json:"week_days,omitempty"`
	MonthlyType string   `json:"monthly_type,omitempty"`
	DayOfMonth  *int     `json:"day_of_month,omitempty"`
	WeekOfMonth *int     `json:"week_of_month,omitempty"`
	DayOfWeek   *int     `json:"day_of_week,omitempty"`
	Exceptions  []string `json:"exceptions,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
}

type modificationDTO struct {
	OriginalDate string    `json:"original_date"`
	Deleted      bool      `json:"deleted,omitempty"`
	Changes      *patchDTO `json:"changes,omitempty"`
}

// patchDTO carries optional event fields. Absent fields are left untouched.
type patchDTO struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
	Start       *string `json:"start,omitempty"`
	End         *string `json:"end,omitempty"`
	AllDay      *bool   `json:"all_day,omitempty"`
	Category    *string `json:"category,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type conflictWarningDTO struct {
	EventID string `json:"event_id"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type eventResponse struct {
	Event    eventDTO             `json:"event"`
	Warnings []conflictWarningDTO `json:"warnings,omitempty"`
}

type listEventsResponse struct {
	Events []eventDTO `json:"events"`
}

func formatInstant(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatDay(t time.Time) string {
	return t.Format(time.DateOnly)
}

func toEventDTO(event application.Event) eventDTO {
	dto := eventDTO{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       formatInstant(event.Start),
		AllDay:      event.AllDay,
		Category:    event.Category.String(),
		Priority:    event.Priority.String(),
		Status:      event.Status.String(),
		Style:       event.Category.Style(),
	}
	if event.End != nil {
		end := formatInstant(*event.End)
		dto.End = &end
	}
	if !event.CreatedAt.IsZero() {
		dto.CreatedAt = formatInstant(event.CreatedAt)
	}
	if !event.UpdatedAt.IsZero() {
		dto.UpdatedAt = formatInstant(event.UpdatedAt)
	}

	if rec := event.Recurrence; rec != nil {
		pattern := toRecurrenceDTO(rec.Pattern)
		dto.Recurrence = &pattern
		dto.ParentEventID = rec.ParentEventID
		if rec.InstanceDate != nil {
			date := formatInstant(*rec.InstanceDate)
			dto.InstanceDate = &date
		}
		for _, mod := range rec.Modifications {
			out := modificationDTO{OriginalDate: formatInstant(mod.OriginalDate), Deleted: mod.IsDeleted}
			if mod.ModifiedEvent != nil && !mod.IsDeleted {
				patch := toPatchDTO(*mod.ModifiedEvent)
				out.Changes = &patch
			}
			dto.Modifications = append(dto.Modifications, out)
		}
	}
	return dto
}

func toEventDTOs(events []application.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toEventDTO(event))
	}
	return out
}

func toRecurrenceDTO(p recurrence.Pattern) recurrenceDTO {
	interval := p.Interval
	dto := recurrenceDTO{
		Frequency:   string(p.Frequency),
		Interval:    &interval,
		EndType:     string(p.EndType),
		Occurrences: p.Occurrences,
		MonthlyType: string(p.MonthlyType),
		DayOfMonth:  p.DayOfMonth,
		WeekOfMonth: p.WeekOfMonth,
		Timezone:    p.Timezone,
	}
	if p.EndDate != nil {
		dto.EndDate = formatDay(*p.EndDate)
	}
	for _, day := range p.WeekDays {
		dto.WeekDays = append(dto.WeekDays, int(day))
	}
	if p.DayOfWeek != nil {
		day := int(*p.DayOfWeek)
		dto.DayOfWeek = &day
	}
	for _, ex := range p.Exceptions {
		dto.Exceptions = append(dto.Exceptions, formatDay(ex))
	}
	return dto
}

// toPattern converts the request form of a pattern. Dates are read in loc;
// an absent interval means every period.
func (r recurrenceDTO) toPattern(loc *time.Location, fields map[string]string) recurrence.Pattern {
	p := recurrence.Pattern{
		Frequency:   recurrence.Frequency(strings.TrimSpace(r.Frequency)),
		Interval:    1,
		EndType:     recurrence.EndType(strings.TrimSpace(r.EndType)),
		Occurrences: r.Occurrences,
		MonthlyType: recurrence.MonthlyType(strings.TrimSpace(r.MonthlyType)),
		DayOfMonth:  r.DayOfMonth,
		WeekOfMonth: r.WeekOfMonth,
		Timezone:    r.Timezone,
	}
	if r.Interval != nil {
		p.Interval = *r.Interval
	}
	if p.EndType == "" {
		p.EndType = recurrence.EndNever
	}
	if r.EndDate != "" {
		if date, err := parseDate(r.EndDate, loc); err == nil {
			p.EndDate = &date
		} else {
			fields["recurrence.end_date"] = err.Error()
		}
	}
	for _, day := range r.WeekDays {
		p.WeekDays = append(p.WeekDays, time.Weekday(day))
	}
	if r.DayOfWeek != nil {
		day := time.Weekday(*r.DayOfWeek)
		p.DayOfWeek = &day
	}
	for _, value := range r.Exceptions {
		date, err := parseDate(value, loc)
		if err != nil {
			fields["recurrence.exceptions"] = err.Error()
			continue
		}
		p.Exceptions = append(p.Exceptions, date)
	}
	return p
}

func toPatchDTO(p recurrence.EventPatch) patchDTO {
	var dto patchDTO
	if v, ok := p.Title.Get(); ok {
		dto.Title = &v
	}
	if v, ok := p.Description.Get(); ok {
		dto.Description = &v
	}
	if v, ok := p.Location.Get(); ok {
		dto.Location = &v
	}
	if v, ok := p.Start.Get(); ok {
		start := formatInstant(v)
		dto.Start = &start
	}
	if v, ok := p.End.Get(); ok {
		end := formatInstant(v)
		dto.End = &end
	}
	if v, ok := p.AllDay.Get(); ok {
		dto.AllDay = &v
	}
	if v, ok := p.Category.Get(); ok {
		dto.Category = &v
	}
	if v, ok := p.Priority.Get(); ok {
		dto.Priority = &v
	}
	if v, ok := p.Status.Get(); ok {
		dto.Status = &v
	}
	return dto
}

func (d patchDTO) toPatch(loc *time.Location, fields map[string]string) recurrence.EventPatch {
	patch := recurrence.EventPatch{
		Title:       mo.PointerToOption(d.Title),
		Description: mo.PointerToOption(d.Description),
		Location:    mo.PointerToOption(d.Location),
		AllDay:      mo.PointerToOption(d.AllDay),
		Category:    mo.PointerToOption(d.Category),
		Priority:    mo.PointerToOption(d.Priority),
		Status:      mo.PointerToOption(d.Status),
	}
	if d.Start != nil {
		if start, err := parseInstant(*d.Start, loc); err == nil {
			patch.Start = mo.Some(start)
		} else {
			fields["start"] = err.Error()
		}
	}
	if d.End != nil {
		if end, err := parseInstant(*d.End, loc); err == nil {
			patch.End = mo.Some(end)
		} else {
			fields["end"] = err.Error()
		}
	}
	return patch
}

func toWarningDTOs(warnings []application.ConflictWarning) []conflictWarningDTO {
	if len(warnings) == 0 {
		return nil
	}

	out := make([]conflictWarningDTO, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, conflictWarningDTO{
			EventID: warning.EventID,
			Title:   warning.Title,
			Type:    warning.Type,
			Start:   formatInstant(warning.Start),
			End:     formatInstant(warning.End),
		})
	}
	return out
}

// parseInstant accepts RFC 3339 timestamps or YYYY-MM-DD dates, which mean
// midnight in loc.
func parseInstant(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if day, err := time.ParseInLocation(time.DateOnly, value, loc); err == nil {
		return day, nil
	}
	return time.Time{}, fmt.Errorf("must be an RFC 3339 timestamp or YYYY-MM-DD date")
}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	ts, err := parseInstant(value, loc)
	if err != nil {
		return time.Time{}, err
	}
	if !strings.Contains(value, "T") {
		return ts, nil
	}
	y, m, d := ts.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
}

// validationError builds the error for request fields that could not be parsed.
func validationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &application.ValidationError{FieldErrors: fields}
}
