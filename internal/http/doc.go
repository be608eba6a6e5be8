// Package http provides HTTP handlers and middleware for the calendar API.
//
// The router exposes the following endpoints:
//   - GET /events?start=&end=: events and expanded occurrences whose date falls in
//     the range. Bounds are RFC 3339 timestamps or YYYY-MM-DD dates; a date-only end
//     covers the whole day. Response: {"events":[eventDTO]}.
//   - GET /events/search?q=&start=&end=: case-insensitive title, description and
//     location search over expanded events. Bounds default to the search horizon.
//   - POST /events: creates an event, optionally with a `recurrence` pattern.
//     Response: {"event","warnings"} where warnings list overlapping events.
//   - GET /events/{id}, PUT /events/{id}?scope=, DELETE /events/{id}?scope=: {id} is
//     a stored id or an occurrence id of the form `<root>_<RFC 3339 UTC start>`.
//     scope is `this`, `thisAndFuture` or `all` (default).
//   - POST /recurrence/validate: {"is_valid","errors","warnings"} for a pattern.
//   - POST /recurrence/describe: {"description","rrule"} for a pattern and optional start.
//   - GET /calendar.ics: iCalendar export of every stored event.
//   - GET /categories: category, priority and status names with their styles.
//   - GET /healthz: storage health, never behind authentication.
//
// Validation failures answer 422 with an `errors` map keyed by field.
// Request/response DTOs live in dto.go so tests and documentation share the
// same ground truth.
package http
