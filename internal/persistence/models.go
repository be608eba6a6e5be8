package persistence

import "time"

// Event is a stored calendar event. Only series roots and single events are
// stored; occurrences are always derived.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         *time.Time
	AllDay      bool
	Category    string
	Priority    string
	Status      string
	Recurrence  *Recurrence
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Recurrence is the stored recurrence pattern of a series root together with
// its per occurrence overrides.
type Recurrence struct {
	Frequency     string
	Interval      int
	EndType       string
	EndDate       *time.Time
	Occurrences   int
	WeekDays      []time.Weekday
	MonthlyType   string
	DayOfMonth    *int
	WeekOfMonth   *int
	DayOfWeek     *time.Weekday
	Exceptions    []time.Time
	Timezone      string
	Modifications []Modification
}

// Modification overrides or deletes the occurrence starting at OriginalDate.
type Modification struct {
	OriginalDate time.Time
	Patch        *EventPatch
	IsDeleted    bool
}

// EventPatch is the serialized form of a sparse field override. Nil fields are
// not overridden.
type EventPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	AllDay      *bool      `json:"all_day,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	Status      *string    `json:"status,omitempty"`
}
