package recurrence

import (
	"strings"
	"time"
)

// instanceIDSeparator joins a series root id and an occurrence timestamp.
const instanceIDSeparator = "_"

// OccurrenceKey normalizes an occurrence start so that modifications and
// instances can be joined regardless of the location they were expressed in.
func OccurrenceKey(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// InstanceID returns the deterministic id of the occurrence of rootID at date.
func InstanceID(rootID string, date time.Time) string {
	return rootID + instanceIDSeparator + OccurrenceKey(date)
}

// ParseInstanceID splits an instance id into its root id and occurrence start.
// ok is false for ids that do not name an instance.
func ParseInstanceID(id string) (rootID string, date time.Time, ok bool) {
	idx := strings.LastIndex(id, instanceIDSeparator)
	if idx <= 0 || idx == len(id)-1 {
		return "", time.Time{}, false
	}
	date, err := time.Parse(time.RFC3339, id[idx+1:])
	if err != nil {
		return "", time.Time{}, false
	}
	return id[:idx], date, true
}

type overrideKind int

const (
	overrideModified overrideKind = iota + 1
	overrideDeleted
)

type override struct {
	kind  overrideKind
	patch EventPatch
}

// overrideTable indexes the modifications of a series root by occurrence.
type overrideTable map[string]override

func newOverrideTable(mods []Modification) overrideTable {
	if len(mods) == 0 {
		return nil
	}
	table := make(overrideTable, len(mods))
	for _, mod := range mods {
		key := OccurrenceKey(mod.OriginalDate)
		switch {
		case mod.IsDeleted:
			table[key] = override{kind: overrideDeleted}
		case mod.ModifiedEvent != nil:
			table[key] = override{kind: overrideModified, patch: *mod.ModifiedEvent}
		}
	}
	return table
}

// CreateEventInstances materializes generated instances into display events.
// Each instance is a copy of base with its own id, times and series linkage;
// deleted occurrences are dropped and modified ones receive their field
// overrides. Output order follows instances.
func CreateEventInstances(base Event, instances []Instance) []Event {
	if len(instances) == 0 {
		return nil
	}

	var overrides overrideTable
	if base.Recurrence != nil {
		overrides = newOverrideTable(base.Recurrence.Modifications)
	}

	events := make([]Event, 0, len(instances))
	for _, inst := range instances {
		ov, found := overrides[OccurrenceKey(inst.Date)]
		if found && ov.kind == overrideDeleted {
			continue
		}

		event := base.Clone()
		event.ID = InstanceID(base.ID, inst.Date)
		event.Start = inst.Date
		event.End = cloneTime(inst.EndDate)

		date := inst.Date
		recurrence := &EventRecurrence{ParentEventID: base.ID, InstanceDate: &date}
		if base.Recurrence != nil {
			recurrence.Pattern = base.Recurrence.Pattern.Clone()
		}
		event.Recurrence = recurrence

		if found && ov.kind == overrideModified {
			ov.patch.Apply(&event)
		}
		events = append(events, event)
	}
	return events
}

// Expand generates and materializes the occurrences of a series root within
// [rangeStart, rangeEnd].
func (e *Engine) Expand(root Event, rangeStart, rangeEnd time.Time) []Event {
	if root.Recurrence == nil || root.Recurrence.IsInstance() {
		return nil
	}
	instances := e.GenerateInstances(root, root.Recurrence.Pattern, rangeStart, rangeEnd)
	return CreateEventInstances(root, instances)
}
