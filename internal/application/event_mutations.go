package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/personal-calendar/internal/recurrence"
	"github.com/example/personal-calendar/internal/scheduler"
)

// UpdateEvent applies a sparse patch to an event, an occurrence, or part of a
// series depending on the scope. Scopes other than all need an instance id
// when the target is a series; on single events every scope behaves as all.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (event Event, warnings []ConflictWarning, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEvent",
		"event_id", params.EventID,
		"scope", string(params.Scope),
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to update event", err)
			return
		}
		logger.With("result_id", event.ID, "warning_count", len(warnings)).InfoContext(ctx, "event updated")
	}()

	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	var scope Scope
	scope, err = ParseScope(string(params.Scope))
	if err != nil {
		return
	}

	vErr := &ValidationError{}
	params.Patch = normalizePatch(params.Patch, vErr)
	if params.Recurrence != nil {
		validatePatternInto(*params.Recurrence, vErr)
		if params.ClearRecurrence {
			vErr.add("recurrence", "recurrence cannot be replaced and cleared at once")
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var (
		root         Event
		instanceDate *time.Time
	)
	root, instanceDate, err = s.resolve(ctx, params.EventID)
	if err != nil {
		return
	}

	if !root.IsRecurring() {
		scope = ScopeAll
	} else if scope != ScopeAll && instanceDate == nil {
		vErr.add("scope", "an occurrence id is required for this scope")
	}
	if scope == ScopeThis && (params.Recurrence != nil || params.ClearRecurrence) {
		vErr.add("recurrence", "the recurrence can only be changed for the whole series")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	switch {
	case scope == ScopeThis:
		event, err = s.updateOccurrence(ctx, root, *instanceDate, params.Patch)
	case scope == ScopeThisAndFuture && s.splitFutureEdits:
		event, err = s.splitSeries(ctx, logger, root, *instanceDate, params)
	default:
		event, err = s.updateSeries(ctx, root, instanceDate, params)
	}
	if err != nil {
		return
	}
	s.invalidate()

	warnings = s.detectConflicts(ctx, logger, event)
	return
}

// DeleteEvent removes an event, one occurrence, or an occurrence and every
// later one depending on the scope.
func (s *EventService) DeleteEvent(ctx context.Context, params DeleteEventParams) (err error) {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteEvent",
		"event_id", params.EventID,
		"scope", string(params.Scope),
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to delete event", err)
			return
		}
		logger.InfoContext(ctx, "event deleted")
	}()

	if s.events == nil {
		return fmt.Errorf("event repository not configured")
	}

	scope, err := ParseScope(string(params.Scope))
	if err != nil {
		return err
	}

	root, instanceDate, err := s.resolve(ctx, params.EventID)
	if err != nil {
		return err
	}

	if !root.IsRecurring() || scope == ScopeAll {
		if err = s.events.DeleteEvent(ctx, root.ID); err != nil {
			return mapEventRepoError(err)
		}
		s.invalidate()
		return nil
	}
	if instanceDate == nil {
		vErr := &ValidationError{}
		vErr.add("scope", "an occurrence id is required for this scope")
		return vErr
	}

	updated := root.Clone()
	switch scope {
	case ScopeThis:
		mods := updated.Recurrence.Modifications
		idx := findModification(mods, *instanceDate)
		switch {
		case idx < 0:
			mods = append(mods, recurrence.Modification{OriginalDate: *instanceDate, IsDeleted: true})
		case mods[idx].IsDeleted:
			return ErrInstanceDeleted
		default:
			mods[idx] = recurrence.Modification{OriginalDate: mods[idx].OriginalDate, IsDeleted: true}
		}
		updated.Recurrence.Modifications = mods
	case ScopeThisAndFuture:
		if !dateIn(*instanceDate, s.location).After(dateIn(root.Start, s.location)) {
			if err = s.events.DeleteEvent(ctx, root.ID); err != nil {
				return mapEventRepoError(err)
			}
			s.invalidate()
			return nil
		}
		s.truncateBefore(&updated, *instanceDate)
	}

	updated.UpdatedAt = s.now()
	if _, err = s.events.UpdateEvent(ctx, updated); err != nil {
		return mapEventRepoError(err)
	}
	s.invalidate()
	return nil
}

// updateSeries edits the root. When the edit was addressed through an
// occurrence, time changes are shifted by the distance between that
// occurrence and the series start.
func (s *EventService) updateSeries(ctx context.Context, root Event, instanceDate *time.Time, params UpdateEventParams) (Event, error) {
	patch := params.Patch
	if instanceDate != nil {
		patch = shiftPatch(patch, root.Start.Sub(*instanceDate))
	}

	updated := root.WithPatch(patch)
	switch {
	case params.ClearRecurrence:
		updated.Recurrence = nil
	case params.Recurrence != nil:
		rec := &recurrence.EventRecurrence{Pattern: s.normalizePattern(*params.Recurrence)}
		if updated.Recurrence != nil {
			rec.Modifications = updated.Recurrence.Modifications
		}
		updated.Recurrence = rec
	}
	if updated.Recurrence != nil {
		updated.Recurrence.Modifications = rekeyModifications(updated.Recurrence.Modifications, updated.Start.Sub(root.Start))
	}
	if vErr := validateTimes(updated); vErr.HasErrors() {
		return Event{}, vErr
	}

	updated.UpdatedAt = s.now()
	persisted, err := s.events.UpdateEvent(ctx, updated)
	if err != nil {
		return Event{}, mapEventRepoError(err)
	}
	return persisted, nil
}

// updateOccurrence records the patch as an override of one occurrence,
// layering it over any earlier override.
func (s *EventService) updateOccurrence(ctx context.Context, root Event, date time.Time, patch recurrence.EventPatch) (Event, error) {
	updated := root.Clone()
	mods := updated.Recurrence.Modifications
	idx := findModification(mods, date)
	switch {
	case idx < 0:
		override := patch
		mods = append(mods, recurrence.Modification{OriginalDate: date, ModifiedEvent: &override})
	case mods[idx].IsDeleted:
		return Event{}, ErrInstanceDeleted
	default:
		merged := patch
		if mods[idx].ModifiedEvent != nil {
			merged = mods[idx].ModifiedEvent.Merge(patch)
		}
		mods[idx].ModifiedEvent = &merged
	}
	updated.Recurrence.Modifications = mods

	occurrence, err := s.materialize(updated, date)
	if err != nil {
		return Event{}, err
	}
	if vErr := validateTimes(occurrence); vErr.HasErrors() {
		return Event{}, vErr
	}

	updated.UpdatedAt = s.now()
	persisted, err := s.events.UpdateEvent(ctx, updated)
	if err != nil {
		return Event{}, mapEventRepoError(err)
	}
	return s.materialize(persisted, date)
}

// splitSeries ends the series the day before date and starts a new series at
// date carrying the patch, the remaining occurrence budget, the later
// exceptions and the later overrides.
func (s *EventService) splitSeries(ctx context.Context, logger *slog.Logger, root Event, date time.Time, params UpdateEventParams) (Event, error) {
	day := dateIn(date, s.location)
	if !day.After(dateIn(root.Start, s.location)) {
		return s.updateSeries(ctx, root, &date, params)
	}

	pattern := root.Recurrence.Pattern
	remaining := 0
	if pattern.EndType == recurrence.EndAfterOccurrences {
		remaining = pattern.Occurrences - s.countBefore(root, day)
		if remaining <= 0 {
			return Event{}, ErrNotFound
		}
	}

	past := root.Clone()
	s.truncateBefore(&past, date)

	future := root.Clone()
	future.ID = s.idGenerator()
	future.Start = date.In(s.location)
	if root.End != nil {
		end := future.Start.Add(root.End.Sub(root.Start))
		future.End = &end
	}
	unpatchedStart := future.Start
	future = future.WithPatch(params.Patch)

	futurePattern := materializeImplicit(pattern, root.Start.In(s.location))
	if remaining > 0 {
		futurePattern.Occurrences = remaining
	}
	var pastExceptions, futureExceptions []time.Time
	for _, ex := range pattern.Exceptions {
		if wallDay(ex, s.location).Before(day) {
			pastExceptions = append(pastExceptions, ex)
		} else {
			futureExceptions = append(futureExceptions, ex)
		}
	}
	past.Recurrence.Exceptions = pastExceptions
	futurePattern.Exceptions = futureExceptions
	if params.Recurrence != nil {
		futurePattern = s.normalizePattern(*params.Recurrence)
	}

	var futureMods []recurrence.Modification
	past.Recurrence.Modifications = nil
	for _, mod := range root.Recurrence.Clone().Modifications {
		if mod.OriginalDate.Before(date) {
			past.Recurrence.Modifications = append(past.Recurrence.Modifications, mod)
		} else {
			futureMods = append(futureMods, mod)
		}
	}
	futureMods = rekeyModifications(futureMods, future.Start.Sub(unpatchedStart))

	if params.ClearRecurrence {
		future.Recurrence = nil
	} else {
		future.Recurrence = &recurrence.EventRecurrence{Pattern: futurePattern, Modifications: futureMods}
	}
	if vErr := validateTimes(future); vErr.HasErrors() {
		return Event{}, vErr
	}

	now := s.now()
	past.UpdatedAt = now
	future.CreatedAt = now
	future.UpdatedAt = now

	if _, err := s.events.UpdateEvent(ctx, past); err != nil {
		return Event{}, mapEventRepoError(err)
	}
	persisted, err := s.events.CreateEvent(ctx, future)
	if err != nil {
		if _, restoreErr := s.events.UpdateEvent(ctx, root); restoreErr != nil {
			logger.ErrorContext(ctx, "failed to restore series after split failure", "error", restoreErr, "root_id", root.ID)
		}
		return Event{}, mapEventRepoError(err)
	}
	logger.With("root_id", root.ID, "new_root_id", persisted.ID).InfoContext(ctx, "series split")
	return persisted, nil
}

// truncateBefore ends the series on the calendar day before date unless it
// already ends earlier.
func (s *EventService) truncateBefore(event *Event, date time.Time) {
	rec := event.Recurrence
	dayBefore := dateIn(date, s.location).AddDate(0, 0, -1)

	switch rec.EndType {
	case recurrence.EndOnDate:
		if rec.EndDate != nil && wallDay(*rec.EndDate, s.location).Before(dayBefore) {
			return
		}
	case recurrence.EndAfterOccurrences:
		if s.countBefore(*event, dateIn(date, s.location)) >= rec.Occurrences {
			return
		}
	}
	rec.EndType = recurrence.EndOnDate
	rec.EndDate = &dayBefore
	rec.Occurrences = 0
}

// countBefore counts the occurrences of a series on calendar days before day.
func (s *EventService) countBefore(root Event, day time.Time) int {
	if !day.After(dateIn(root.Start, s.location)) {
		return 0
	}
	return len(s.engine.GenerateInstances(toEngineEvent(root), root.Recurrence.Pattern, root.Start, day.AddDate(0, 0, -1)))
}

// detectConflicts reports existing events overlapping event. Series are
// checked over the next occurrences within conflictLookahead. Failures are
// logged and yield no warnings since the write already succeeded.
func (s *EventService) detectConflicts(ctx context.Context, logger *slog.Logger, event Event) []ConflictWarning {
	if event.Status == StatusCancelled {
		return nil
	}

	seriesID := event.ID
	if event.IsInstance() {
		seriesID = event.Recurrence.ParentEventID
	}

	var candidates []scheduler.Slot
	if event.IsRecurring() {
		for _, occurrence := range s.engine.Expand(toEngineEvent(event), event.Start, event.Start.Add(conflictLookahead)) {
			candidates = append(candidates, toSlot(fromEngineEvent(occurrence, event), seriesID))
		}
	} else {
		candidates = append(candidates, toSlot(event, seriesID))
	}
	if len(candidates) == 0 {
		return nil
	}

	windowStart, windowEnd := candidates[0].Start, candidates[0].End
	for _, slot := range candidates[1:] {
		if slot.Start.Before(windowStart) {
			windowStart = slot.Start
		}
		if slot.End.After(windowEnd) {
			windowEnd = slot.End
		}
	}

	existing, err := s.expandRange(ctx, windowStart, windowEnd)
	if err != nil {
		logger.WarnContext(ctx, "conflict detection skipped", "error", err, "error_kind", ErrorKind(err))
		return nil
	}

	titles := make(map[string]string, len(existing))
	slots := make([]scheduler.Slot, 0, len(existing))
	for _, other := range existing {
		if other.Status == StatusCancelled {
			continue
		}
		otherSeries := other.ID
		if other.IsInstance() {
			otherSeries = other.Recurrence.ParentEventID
		}
		titles[other.ID] = other.Title
		slots = append(slots, toSlot(other, otherSeries))
	}

	var warnings []ConflictWarning
	seen := make(map[string]struct{})
	for _, candidate := range candidates {
		for _, conflict := range scheduler.DetectConflicts(slots, candidate) {
			if _, dup := seen[conflict.WithID]; dup {
				continue
			}
			seen[conflict.WithID] = struct{}{}
			warnings = append(warnings, ConflictWarning{
				EventID: conflict.WithID,
				Title:   titles[conflict.WithID],
				Type:    string(conflict.Type),
				Start:   conflict.Start,
				End:     conflict.End,
			})
			if len(warnings) == maxConflictWarnings {
				return warnings
			}
		}
	}
	return warnings
}

func toSlot(event Event, seriesID string) scheduler.Slot {
	end := event.Start
	if event.End != nil {
		end = *event.End
	}
	return scheduler.Slot{
		ID:       event.ID,
		SeriesID: seriesID,
		Start:    event.Start,
		End:      end,
		AllDay:   event.AllDay,
	}
}

// normalizePatch validates and canonicalizes the fields present in a patch.
func normalizePatch(patch recurrence.EventPatch, vErr *ValidationError) recurrence.EventPatch {
	if title, ok := patch.Title.Get(); ok {
		title = strings.TrimSpace(title)
		if title == "" {
			vErr.add("title", "title is required")
		}
		patch.Title = patch.Title.Map(func(string) (string, bool) { return title, true })
	}
	if location, ok := patch.Location.Get(); ok {
		patch.Location = patch.Location.Map(func(string) (string, bool) { return strings.TrimSpace(location), true })
	}
	if start, ok := patch.Start.Get(); ok && start.IsZero() {
		vErr.add("start", "start is required")
	}
	start, hasStart := patch.Start.Get()
	end, hasEnd := patch.End.Get()
	if hasStart && hasEnd && end.Before(start) {
		vErr.add("end", "end must not be before start")
	}
	if value, ok := patch.Category.Get(); ok {
		category := parseLabel(vErr, "category", value, CategoryPersonal, ParseCategory)
		patch.Category = patch.Category.Map(func(string) (string, bool) { return category.String(), true })
	}
	if value, ok := patch.Priority.Get(); ok {
		priority := parseLabel(vErr, "priority", value, PriorityMedium, ParsePriority)
		patch.Priority = patch.Priority.Map(func(string) (string, bool) { return priority.String(), true })
	}
	if value, ok := patch.Status.Get(); ok {
		status := parseLabel(vErr, "status", value, StatusConfirmed, ParseStatus)
		patch.Status = patch.Status.Map(func(string) (string, bool) { return status.String(), true })
	}
	return patch
}

// shiftPatch moves the time fields of a patch by delta.
func shiftPatch(patch recurrence.EventPatch, delta time.Duration) recurrence.EventPatch {
	shift := func(t time.Time) (time.Time, bool) { return t.Add(delta), true }
	patch.Start = patch.Start.Map(shift)
	patch.End = patch.End.Map(shift)
	return patch
}

func validateTimes(event Event) *ValidationError {
	vErr := &ValidationError{}
	if event.End != nil && event.End.Before(event.Start) {
		vErr.add("end", "end must not be before start")
	}
	return vErr
}

// rekeyModifications moves every override by delta so it keeps addressing the
// same occurrence after the series start moved. Later entries win on a clash.
func rekeyModifications(mods []recurrence.Modification, delta time.Duration) []recurrence.Modification {
	if delta == 0 || len(mods) == 0 {
		return mods
	}
	out := make([]recurrence.Modification, 0, len(mods))
	for _, mod := range mods {
		mod.OriginalDate = mod.OriginalDate.Add(delta)
		if idx := findModification(out, mod.OriginalDate); idx >= 0 {
			out[idx] = mod
			continue
		}
		out = append(out, mod)
	}
	return out
}

func findModification(mods []recurrence.Modification, date time.Time) int {
	key := recurrence.OccurrenceKey(date)
	for i, mod := range mods {
		if recurrence.OccurrenceKey(mod.OriginalDate) == key {
			return i
		}
	}
	return -1
}

// materializeImplicit pins the fields a pattern derives from its series start
// so that moving the start keeps the same occurrence days.
func materializeImplicit(p recurrence.Pattern, start time.Time) recurrence.Pattern {
	out := p.Clone()
	switch out.Frequency {
	case recurrence.FrequencyWeekly:
		if len(out.WeekDays) == 0 {
			out.WeekDays = []time.Weekday{start.Weekday()}
		}
	case recurrence.FrequencyMonthly:
		if out.MonthlyType != recurrence.MonthlyByDayOfWeek && out.DayOfMonth == nil {
			day := start.Day()
			out.MonthlyType = recurrence.MonthlyByDayOfMonth
			out.DayOfMonth = &day
		}
	}
	return out
}

// wallDay reinterprets the calendar date of t, as written, in loc.
func wallDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
