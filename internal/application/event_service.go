package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/personal-calendar/internal/persistence"
	"github.com/example/personal-calendar/internal/recurrence"
)

const (
	defaultSearchHorizon = 365 * 24 * time.Hour
	// conflictLookahead bounds how many occurrences of a series are checked
	// for overlaps after a write.
	conflictLookahead   = 30 * 24 * time.Hour
	maxConflictWarnings = 20
)

// EventRepository abstracts persistence operations for stored events. Only
// series roots and single events are stored; occurrences never are.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, filter EventRepositoryFilter) ([]Event, error)
}

// EventServiceOptions tunes an EventService. Zero values select defaults.
type EventServiceOptions struct {
	// Location is the zone wall clock dates are evaluated in.
	Location *time.Location
	// SplitFutureEdits makes "this and future" edits split the series at the
	// edited occurrence instead of editing every occurrence.
	SplitFutureEdits bool
	SearchHorizon    time.Duration
	CacheTTL         time.Duration
	CacheMaxEntries  int
	Logger           *slog.Logger
}

// EventService orchestrates validation, expansion and persistence for events.
type EventService struct {
	events           EventRepository
	engine           *recurrence.Engine
	location         *time.Location
	cache            *expansionCache
	revision         atomic.Uint64
	splitFutureEdits bool
	searchHorizon    time.Duration
	idGenerator      func() string
	now              func() time.Time
	logger           *slog.Logger
}

// NewEventService wires dependencies for event operations.
func NewEventService(events EventRepository, idGenerator func() string, now func() time.Time, opts EventServiceOptions) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	horizon := opts.SearchHorizon
	if horizon <= 0 {
		horizon = defaultSearchHorizon
	}
	return &EventService{
		events:           events,
		engine:           recurrence.NewEngine(loc),
		location:         loc,
		cache:            newExpansionCache(opts.CacheTTL, opts.CacheMaxEntries, now),
		splitFutureEdits: opts.SplitFutureEdits,
		searchHorizon:    horizon,
		idGenerator:      idGenerator,
		now:              now,
		logger:           defaultLogger(opts.Logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// Location reports the zone the service evaluates calendar dates in.
func (s *EventService) Location() *time.Location {
	return s.location
}

// CreateEvent validates input and persists a new event or series root. The
// returned warnings list existing events the new one overlaps.
func (s *EventService) CreateEvent(ctx context.Context, input EventInput) (event Event, warnings []ConflictWarning, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateEvent", "recurring", input.Recurrence != nil)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to create event", err)
			return
		}
		logger.With("event_id", event.ID, "warning_count", len(warnings)).InfoContext(ctx, "event created")
	}()

	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	vErr := &ValidationError{}
	event = s.newEvent(input, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var persisted Event
	persisted, err = s.events.CreateEvent(ctx, event)
	if err != nil {
		err = mapEventRepoError(err)
		return
	}
	s.invalidate()

	event = persisted
	warnings = s.detectConflicts(ctx, logger, event)
	return
}

// GetEvent returns a stored event, or the materialized occurrence named by an
// instance id.
func (s *EventService) GetEvent(ctx context.Context, id string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Event{}, fmt.Errorf("event repository not configured")
	}

	root, instanceDate, err := s.resolve(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if instanceDate == nil {
		return root, nil
	}
	return s.materialize(root, *instanceDate)
}

// ListEvents returns every event and occurrence whose calendar date falls in
// [rangeStart, rangeEnd], ordered by start then id.
func (s *EventService) ListEvents(ctx context.Context, rangeStart, rangeEnd time.Time) (events []Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListEvents",
		"range_start", rangeStart,
		"range_end", rangeEnd,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to list events", err)
			return
		}
		logger.With("result_count", len(events)).DebugContext(ctx, "events listed")
	}()

	if vErr := validateRange(rangeStart, rangeEnd); vErr.HasErrors() {
		err = vErr
		return
	}
	events, err = s.expandRange(ctx, rangeStart, rangeEnd)
	return
}

// SearchEvents returns the events and occurrences within the search window
// whose title, description or location contains the query, ignoring case.
func (s *EventService) SearchEvents(ctx context.Context, params SearchParams) (events []Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	query := strings.ToLower(strings.TrimSpace(params.Query))
	logger := s.loggerWith(ctx, "SearchEvents", "query", query)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to search events", err)
			return
		}
		logger.With("result_count", len(events)).DebugContext(ctx, "events searched")
	}()

	vErr := &ValidationError{}
	if query == "" {
		vErr.add("q", "query is required")
	}
	now := s.now()
	start, end := params.Start, params.End
	if start.IsZero() {
		start = now.Add(-s.searchHorizon)
	}
	if end.IsZero() {
		end = now.Add(s.searchHorizon)
	}
	vErr.merge(validateRange(start, end))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var expanded []Event
	expanded, err = s.expandRange(ctx, start, end)
	if err != nil {
		return
	}
	for _, event := range expanded {
		if matchesQuery(event, query) {
			events = append(events, event)
		}
	}
	return
}

// ValidatePattern reports every problem with a pattern without touching storage.
func (s *EventService) ValidatePattern(p recurrence.Pattern) recurrence.ValidationResult {
	return recurrence.Validate(p)
}

// DescribePattern renders a pattern as a sentence and as an RRULE anchored at
// dtstart. A zero dtstart anchors the rule at the current time.
func (s *EventService) DescribePattern(p recurrence.Pattern, dtstart time.Time) (PatternDescription, error) {
	vErr := &ValidationError{}
	validatePatternInto(p, vErr)
	if vErr.HasErrors() {
		return PatternDescription{}, vErr
	}
	if dtstart.IsZero() {
		dtstart = s.now()
	}
	rule, err := recurrence.ToRRule(p, dtstart.In(s.location))
	if err != nil {
		return PatternDescription{}, err
	}
	return PatternDescription{Description: recurrence.Describe(p), RRule: rule}, nil
}

// ExportEvents returns every stored event and series root, for calendar export.
func (s *EventService) ExportEvents(ctx context.Context) ([]Event, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return nil, fmt.Errorf("event repository not configured")
	}
	events, err := s.events.ListEvents(ctx, EventRepositoryFilter{})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, mapEventRepoError(err)
	}
	return events, nil
}

// PurgeExpiredCache drops expired expansion cache entries and reports how
// many were removed.
func (s *EventService) PurgeExpiredCache() int {
	if s == nil {
		return 0
	}
	return s.cache.Purge()
}

func (s *EventService) invalidate() {
	s.revision.Add(1)
	s.cache.Invalidate()
}

// newEvent validates input and assembles a fresh event, recording problems on vErr.
func (s *EventService) newEvent(input EventInput, vErr *ValidationError) Event {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		vErr.add("title", "title is required")
	}
	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	} else if input.End != nil && input.End.Before(input.Start) {
		vErr.add("end", "end must not be before start")
	}

	createdAt := s.now()
	event := Event{
		ID:          s.idGenerator(),
		Title:       title,
		Description: input.Description,
		Location:    strings.TrimSpace(input.Location),
		Start:       input.Start,
		AllDay:      input.AllDay,
		Category:    parseLabel(vErr, "category", input.Category, CategoryPersonal, ParseCategory),
		Priority:    parseLabel(vErr, "priority", input.Priority, PriorityMedium, ParsePriority),
		Status:      parseLabel(vErr, "status", input.Status, StatusConfirmed, ParseStatus),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if input.End != nil {
		end := *input.End
		event.End = &end
	}
	if input.Recurrence != nil {
		validatePatternInto(*input.Recurrence, vErr)
		event.Recurrence = &recurrence.EventRecurrence{Pattern: s.normalizePattern(*input.Recurrence)}
	}
	return event
}

func (s *EventService) normalizePattern(p recurrence.Pattern) recurrence.Pattern {
	out := p.Clone()
	if out.Timezone == "" {
		out.Timezone = s.location.String()
	}
	return out
}

// resolve looks up the stored event behind id. Instance ids resolve to their
// series root and the occurrence start they name.
func (s *EventService) resolve(ctx context.Context, id string) (Event, *time.Time, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Event{}, nil, ErrNotFound
	}

	event, err := s.events.GetEvent(ctx, id)
	if err == nil {
		return event, nil, nil
	}
	if !isNotFoundError(err) {
		return Event{}, nil, mapEventRepoError(err)
	}

	rootID, date, ok := recurrence.ParseInstanceID(id)
	if !ok {
		return Event{}, nil, ErrNotFound
	}
	root, err := s.events.GetEvent(ctx, rootID)
	if err != nil {
		return Event{}, nil, mapEventRepoError(err)
	}
	if !root.IsRecurring() {
		return Event{}, nil, ErrNotFound
	}
	return root, &date, nil
}

// materialize renders the occurrence of root starting at date, with any
// override applied.
func (s *EventService) materialize(root Event, date time.Time) (Event, error) {
	inst := recurrence.Instance{Date: date.In(s.location)}
	if root.End != nil {
		end := inst.Date.Add(root.End.Sub(root.Start))
		inst.EndDate = &end
	}
	rendered := recurrence.CreateEventInstances(toEngineEvent(root), []recurrence.Instance{inst})
	if len(rendered) == 0 {
		return Event{}, ErrInstanceDeleted
	}
	return fromEngineEvent(rendered[0], root), nil
}

// expandRange lists stored events overlapping the range and expands series
// roots into their occurrences. Results are cached per store revision.
func (s *EventService) expandRange(ctx context.Context, rangeStart, rangeEnd time.Time) ([]Event, error) {
	if s.events == nil {
		return nil, fmt.Errorf("event repository not configured")
	}

	key := buildExpansionCacheKey(s.revision.Load(), rangeStart, rangeEnd)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	firstDay := dateIn(rangeStart, s.location)
	lastDay := dateIn(rangeEnd, s.location)
	startsBefore := lastDay.AddDate(0, 0, 1)
	stored, err := s.events.ListEvents(ctx, EventRepositoryFilter{
		StartsBefore: &startsBefore,
		EndsAfter:    &firstDay,
	})
	if err != nil {
		if !isNotFoundError(err) {
			return nil, mapEventRepoError(err)
		}
		stored = nil
	}

	var expanded []Event
	for _, event := range stored {
		if event.IsRecurring() {
			for _, occurrence := range s.engine.Expand(toEngineEvent(event), rangeStart, rangeEnd) {
				expanded = append(expanded, fromEngineEvent(occurrence, event))
			}
			continue
		}
		if s.withinDays(event, firstDay, lastDay) {
			expanded = append(expanded, event)
		}
	}
	sortEvents(expanded)

	s.cache.Store(key, expanded)
	return cloneEvents(expanded), nil
}

// withinDays reports whether a single event touches a calendar date in
// [firstDay, lastDay].
func (s *EventService) withinDays(event Event, firstDay, lastDay time.Time) bool {
	end := event.Start
	if event.End != nil && event.End.After(end) {
		end = *event.End
	}
	return !dateIn(event.Start, s.location).After(lastDay) && !dateIn(end, s.location).Before(firstDay)
}

func matchesQuery(event Event, query string) bool {
	for _, field := range []string{event.Title, event.Description, event.Location} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func validateRange(rangeStart, rangeEnd time.Time) *ValidationError {
	vErr := &ValidationError{}
	switch {
	case rangeStart.IsZero() || rangeEnd.IsZero():
		vErr.add("range", "start and end are required")
	case rangeEnd.Before(rangeStart):
		vErr.add("range", "end must not be before start")
	}
	return vErr
}

func validatePatternInto(p recurrence.Pattern, vErr *ValidationError) {
	if result := recurrence.Validate(p); !result.IsValid {
		vErr.add("recurrence", strings.Join(result.Errors, "; "))
	}
}

func parseLabel[T any](vErr *ValidationError, field, value string, fallback T, parse func(string) (T, error)) T {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := parse(value)
	if err != nil {
		vErr.add(field, err.Error())
		return fallback
	}
	return parsed
}

// labelOr parses a stored label, keeping fallback for labels that no longer parse.
func labelOr[T any](value string, fallback T, parse func(string) (T, error)) T {
	parsed, err := parse(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func toEngineEvent(event Event) recurrence.Event {
	return recurrence.Event{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       event.Start,
		End:         event.End,
		AllDay:      event.AllDay,
		Category:    event.Category.String(),
		Priority:    event.Priority.String(),
		Status:      event.Status.String(),
		Recurrence:  event.Recurrence,
	}
}

// fromEngineEvent converts an engine event back, taking bookkeeping fields
// and label fallbacks from source.
func fromEngineEvent(rendered recurrence.Event, source Event) Event {
	return Event{
		ID:          rendered.ID,
		Title:       rendered.Title,
		Description: rendered.Description,
		Location:    rendered.Location,
		Start:       rendered.Start,
		End:         rendered.End,
		AllDay:      rendered.AllDay,
		Category:    labelOr(rendered.Category, source.Category, ParseCategory),
		Priority:    labelOr(rendered.Priority, source.Priority, ParsePriority),
		Status:      labelOr(rendered.Status, source.Status, ParseStatus),
		Recurrence:  rendered.Recurrence,
		CreatedAt:   source.CreatedAt,
		UpdatedAt:   source.UpdatedAt,
	}
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].ID < events[j].ID
		}
		return events[i].Start.Before(events[j].Start)
	})
}

// dateIn returns midnight of the calendar date t falls on in loc.
func dateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func mapEventRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("event", "event violates a storage constraint")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("recurrence", "series root does not exist")
		return vErr
	}
	return err
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
