package application

import (
	"fmt"
	"strings"
)

// Category groups events for display.
type Category uint8

const (
	CategoryPersonal Category = iota
	CategoryWork
	CategoryFamily
	CategoryHealth
	CategorySocial
	CategoryOther

	categoryCount
)

// Priority ranks events.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh

	priorityCount
)

// Status tracks whether an event is going ahead.
type Status uint8

const (
	StatusConfirmed Status = iota
	StatusTentative
	StatusCancelled

	statusCount
)

// Style holds the colour tokens a client renders an enum value with.
type Style struct {
	Background string `json:"background"`
	Text       string `json:"text"`
	Border     string `json:"border"`
}

var categoryNames = [...]string{
	CategoryPersonal: "personal",
	CategoryWork:     "work",
	CategoryFamily:   "family",
	CategoryHealth:   "health",
	CategorySocial:   "social",
	CategoryOther:    "other",
}

var categoryStyles = [...]Style{
	CategoryPersonal: {Background: "blue-100", Text: "blue-800", Border: "blue-300"},
	CategoryWork:     {Background: "purple-100", Text: "purple-800", Border: "purple-300"},
	CategoryFamily:   {Background: "green-100", Text: "green-800", Border: "green-300"},
	CategoryHealth:   {Background: "red-100", Text: "red-800", Border: "red-300"},
	CategorySocial:   {Background: "yellow-100", Text: "yellow-800", Border: "yellow-300"},
	CategoryOther:    {Background: "gray-100", Text: "gray-800", Border: "gray-300"},
}

var priorityNames = [...]string{
	PriorityLow:    "low",
	PriorityMedium: "medium",
	PriorityHigh:   "high",
}

var priorityStyles = [...]Style{
	PriorityLow:    {Background: "gray-50", Text: "gray-600", Border: "gray-200"},
	PriorityMedium: {Background: "amber-50", Text: "amber-700", Border: "amber-300"},
	PriorityHigh:   {Background: "red-50", Text: "red-700", Border: "red-500"},
}

var statusNames = [...]string{
	StatusConfirmed: "confirmed",
	StatusTentative: "tentative",
	StatusCancelled: "cancelled",
}

var statusStyles = [...]Style{
	StatusConfirmed: {Background: "emerald-50", Text: "emerald-700", Border: "emerald-400"},
	StatusTentative: {Background: "sky-50", Text: "sky-700", Border: "sky-300"},
	StatusCancelled: {Background: "zinc-100", Text: "zinc-500", Border: "zinc-300"},
}

// Every enum value must have a name and a style.
var (
	_ = [1]struct{}{}[len(categoryNames)-int(categoryCount)]
	_ = [1]struct{}{}[len(categoryStyles)-int(categoryCount)]
	_ = [1]struct{}{}[len(priorityNames)-int(priorityCount)]
	_ = [1]struct{}{}[len(priorityStyles)-int(priorityCount)]
	_ = [1]struct{}{}[len(statusNames)-int(statusCount)]
	_ = [1]struct{}{}[len(statusStyles)-int(statusCount)]
)

// Categories lists every category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, categoryCount)
	for c := range categoryCount {
		out = append(out, c)
	}
	return out
}

// Priorities lists every priority in declaration order.
func Priorities() []Priority {
	out := make([]Priority, 0, priorityCount)
	for p := range priorityCount {
		out = append(out, p)
	}
	return out
}

// Statuses lists every status in declaration order.
func Statuses() []Status {
	out := make([]Status, 0, statusCount)
	for s := range statusCount {
		out = append(out, s)
	}
	return out
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(value string) (Category, error) {
	idx, err := parseName(categoryNames[:], "category", value)
	return Category(idx), err
}

// ParsePriority resolves a priority name case-insensitively.
func ParsePriority(value string) (Priority, error) {
	idx, err := parseName(priorityNames[:], "priority", value)
	return Priority(idx), err
}

// ParseStatus resolves a status name case-insensitively.
func ParseStatus(value string) (Status, error) {
	idx, err := parseName(statusNames[:], "status", value)
	return Status(idx), err
}

func parseName(names []string, kind, value string) (int, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for i, name := range names {
		if name == normalized {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, value)
}

func (c Category) Valid() bool { return c < categoryCount }
func (p Priority) Valid() bool { return p < priorityCount }
func (s Status) Valid() bool   { return s < statusCount }

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return categoryNames[c]
}

func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Priority(%d)", uint8(p))
	}
	return priorityNames[p]
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
	return statusNames[s]
}

// Style returns the colour tokens for the category. Invalid values render as other.
func (c Category) Style() Style {
	if !c.Valid() {
		return categoryStyles[CategoryOther]
	}
	return categoryStyles[c]
}

// Style returns the colour tokens for the priority.
func (p Priority) Style() Style {
	if !p.Valid() {
		return priorityStyles[PriorityMedium]
	}
	return priorityStyles[p]
}

// Style returns the colour tokens for the status.
func (s Status) Style() Style {
	if !s.Valid() {
		return statusStyles[StatusConfirmed]
	}
	return statusStyles[s]
}
