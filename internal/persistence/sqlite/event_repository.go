package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/personal-calendar/internal/persistence"
)

// timestampLayout is used for every stored instant. All instants are stored
// in UTC so that lexical order matches chronological order.
const timestampLayout = time.RFC3339

// EventRepository implements persistence.EventRepository using SQLite
type EventRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
	now    func() time.Time
}

// NewEventRepository creates a new SQLite event repository
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		now:    time.Now,
	}
}

type eventRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Location    string         `db:"location"`
	StartAt     string         `db:"start_at"`
	EndAt       sql.NullString `db:"end_at"`
	AllDay      bool           `db:"all_day"`
	Category    string         `db:"category"`
	Priority    string         `db:"priority"`
	Status      string         `db:"status"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

type recurrenceRow struct {
	EventID     string         `db:"event_id"`
	Frequency   string         `db:"frequency"`
	Interval    int            `db:"interval_value"`
	EndType     string         `db:"end_type"`
	EndDate     sql.NullString `db:"end_date"`
	Occurrences int            `db:"occurrences"`
	Weekdays    int64          `db:"weekdays"`
	MonthlyType string         `db:"monthly_type"`
	DayOfMonth  sql.NullInt64  `db:"day_of_month"`
	WeekOfMonth sql.NullInt64  `db:"week_of_month"`
	DayOfWeek   sql.NullInt64  `db:"day_of_week"`
	Timezone    string         `db:"timezone"`
}

type exceptionRow struct {
	EventID string `db:"event_id"`
	Date    string `db:"exception_date"`
}

type modificationRow struct {
	EventID      string         `db:"event_id"`
	OriginalDate string         `db:"original_date"`
	IsDeleted    bool           `db:"is_deleted"`
	Patch        sql.NullString `db:"patch"`
}

const selectEventColumns = `e.id, e.title, e.description, e.location, e.start_at, e.end_at, e.all_day,
	e.category, e.priority, e.status, e.created_at, e.updated_at`

// CreateEvent inserts an event together with its recurrence data
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = now
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			query := `
				INSERT INTO events (id, title, description, location, start_at, end_at, all_day,
					category, priority, status, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`
			if _, err := tx.ExecContext(ctx, query,
				event.ID,
				event.Title,
				event.Description,
				event.Location,
				formatInstant(event.Start),
				nullInstant(event.End),
				event.AllDay,
				event.Category,
				event.Priority,
				event.Status,
				formatInstant(event.CreatedAt),
				formatInstant(event.UpdatedAt),
			); err != nil {
				return err
			}
			return r.insertRecurrence(ctx, tx, event.ID, event.Recurrence)
		})
	})
}

// UpdateEvent replaces the stored fields and recurrence data of an event.
// The creation timestamp is kept.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrNotFound
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = r.now().UTC()
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			query := `
				UPDATE events
				SET title = ?, description = ?, location = ?, start_at = ?, end_at = ?, all_day = ?,
					category = ?, priority = ?, status = ?, updated_at = ?
				WHERE id = ?
			`
			result, err := tx.ExecContext(ctx, query,
				event.Title,
				event.Description,
				event.Location,
				formatInstant(event.Start),
				nullInstant(event.End),
				event.AllDay,
				event.Category,
				event.Priority,
				event.Status,
				formatInstant(event.UpdatedAt),
				event.ID,
			)
			if err != nil {
				return err
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if affected == 0 {
				return persistence.ErrNotFound
			}

			if err := r.deleteRecurrence(ctx, tx, event.ID); err != nil {
				return err
			}
			return r.insertRecurrence(ctx, tx, event.ID, event.Recurrence)
		})
	})
}

// GetEvent retrieves an event by ID
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	var row eventRow
	query := `SELECT ` + selectEventColumns + ` FROM events e WHERE e.id = ?`
	if err := r.pool.db.GetContext(ctx, &row, query, id); err != nil {
		return persistence.Event{}, r.mapper.MapError(err)
	}

	events, err := r.hydrate(ctx, []eventRow{row})
	if err != nil {
		return persistence.Event{}, err
	}
	return events[0], nil
}

// ListEvents returns events matching filter ordered by start time
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.StartsBefore != nil {
		conditions = append(conditions, "e.start_at <= ?")
		args = append(args, formatInstant(*filter.StartsBefore))
	}
	if filter.EndsAfter != nil {
		conditions = append(conditions, "(r.event_id IS NOT NULL OR COALESCE(e.end_at, e.start_at) >= ?)")
		args = append(args, formatInstant(*filter.EndsAfter))
	}

	query := `SELECT ` + selectEventColumns + ` FROM events e LEFT JOIN recurrences r ON r.event_id = e.id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY e.start_at ASC, e.id ASC"

	var rows []eventRow
	if err := r.pool.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.mapper.MapError(err)
	}
	if len(rows) == 0 {
		return []persistence.Event{}, nil
	}
	return r.hydrate(ctx, rows)
}

// DeleteEvent deletes an event; its recurrence rows cascade.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			if err := r.deleteRecurrence(ctx, tx, id); err != nil {
				return err
			}
			result, err := tx.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
			if err != nil {
				return err
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if affected == 0 {
				return persistence.ErrNotFound
			}
			return nil
		})
	})
}

func (r *EventRepository) insertRecurrence(ctx context.Context, tx *sqlx.Tx, eventID string, rec *persistence.Recurrence) error {
	if rec == nil {
		return nil
	}

	var dayOfWeek sql.NullInt64
	if rec.DayOfWeek != nil {
		dayOfWeek = sql.NullInt64{Int64: int64(*rec.DayOfWeek), Valid: true}
	}

	query := `
		INSERT INTO recurrences (event_id, frequency, interval_value, end_type, end_date, occurrences,
			weekdays, monthly_type, day_of_month, week_of_month, day_of_week, timezone)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query,
		eventID,
		rec.Frequency,
		rec.Interval,
		rec.EndType,
		nullDate(rec.EndDate),
		rec.Occurrences,
		encodeWeekdays(rec.WeekDays),
		rec.MonthlyType,
		nullInt(rec.DayOfMonth),
		nullInt(rec.WeekOfMonth),
		dayOfWeek,
		rec.Timezone,
	); err != nil {
		return err
	}

	for _, date := range rec.Exceptions {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO recurrence_exceptions (event_id, exception_date) VALUES (?, ?)`,
			eventID, date.Format(timestampLayout),
		); err != nil {
			return err
		}
	}

	for _, mod := range rec.Modifications {
		var patch sql.NullString
		if mod.Patch != nil {
			encoded, err := json.Marshal(mod.Patch)
			if err != nil {
				return fmt.Errorf("encode modification patch: %w", err)
			}
			patch = sql.NullString{String: string(encoded), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO recurrence_modifications (event_id, original_date, is_deleted, patch) VALUES (?, ?, ?, ?)`,
			eventID, formatInstant(mod.OriginalDate), mod.IsDeleted, patch,
		); err != nil {
			return err
		}
	}

	return nil
}

func (r *EventRepository) deleteRecurrence(ctx context.Context, tx *sqlx.Tx, eventID string) error {
	for _, table := range []string{"recurrence_modifications", "recurrence_exceptions", "recurrences"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE event_id = ?", eventID); err != nil {
			return err
		}
	}
	return nil
}

// hydrate converts event rows and attaches their recurrence data, loaded in
// one query per table.
func (r *EventRepository) hydrate(ctx context.Context, rows []eventRow) ([]persistence.Event, error) {
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	recurrences, err := r.loadRecurrences(ctx, ids)
	if err != nil {
		return nil, err
	}

	events := make([]persistence.Event, 0, len(rows))
	for _, row := range rows {
		event, err := row.toEvent()
		if err != nil {
			return nil, err
		}
		event.Recurrence = recurrences[row.ID]
		events = append(events, event)
	}
	return events, nil
}

func (r *EventRepository) loadRecurrences(ctx context.Context, ids []string) (map[string]*persistence.Recurrence, error) {
	result := make(map[string]*persistence.Recurrence)

	var recurrenceRows []recurrenceRow
	if err := r.selectIn(ctx, &recurrenceRows, `
		SELECT event_id, frequency, interval_value, end_type, end_date, occurrences, weekdays,
			monthly_type, day_of_month, week_of_month, day_of_week, timezone
		FROM recurrences WHERE event_id IN (?)`, ids); err != nil {
		return nil, err
	}
	if len(recurrenceRows) == 0 {
		return result, nil
	}
	for _, row := range recurrenceRows {
		rec, err := row.toRecurrence()
		if err != nil {
			return nil, err
		}
		result[row.EventID] = rec
	}

	var exceptionRows []exceptionRow
	if err := r.selectIn(ctx, &exceptionRows, `
		SELECT event_id, exception_date FROM recurrence_exceptions
		WHERE event_id IN (?) ORDER BY event_id, exception_date`, ids); err != nil {
		return nil, err
	}
	for _, row := range exceptionRows {
		date, err := time.Parse(timestampLayout, row.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse exception_date: %w", err)
		}
		if rec := result[row.EventID]; rec != nil {
			rec.Exceptions = append(rec.Exceptions, date)
		}
	}

	var modificationRows []modificationRow
	if err := r.selectIn(ctx, &modificationRows, `
		SELECT event_id, original_date, is_deleted, patch FROM recurrence_modifications
		WHERE event_id IN (?) ORDER BY event_id, original_date`, ids); err != nil {
		return nil, err
	}
	for _, row := range modificationRows {
		mod, err := row.toModification()
		if err != nil {
			return nil, err
		}
		if rec := result[row.EventID]; rec != nil {
			rec.Modifications = append(rec.Modifications, mod)
		}
	}

	return result, nil
}

func (r *EventRepository) selectIn(ctx context.Context, dest any, query string, ids []string) error {
	query, args, err := sqlx.In(query, ids)
	if err != nil {
		return fmt.Errorf("expand query: %w", err)
	}
	if err := r.pool.db.SelectContext(ctx, dest, r.pool.db.Rebind(query), args...); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

func (row eventRow) toEvent() (persistence.Event, error) {
	event := persistence.Event{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Location:    row.Location,
		AllDay:      row.AllDay,
		Category:    row.Category,
		Priority:    row.Priority,
		Status:      row.Status,
	}

	var err error
	if event.Start, err = time.Parse(timestampLayout, row.StartAt); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse start_at: %w", err)
	}
	if row.EndAt.Valid {
		end, err := time.Parse(timestampLayout, row.EndAt.String)
		if err != nil {
			return persistence.Event{}, fmt.Errorf("failed to parse end_at: %w", err)
		}
		event.End = &end
	}
	if event.CreatedAt, err = time.Parse(timestampLayout, row.CreatedAt); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if event.UpdatedAt, err = time.Parse(timestampLayout, row.UpdatedAt); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return event, nil
}

func (row recurrenceRow) toRecurrence() (*persistence.Recurrence, error) {
	rec := &persistence.Recurrence{
		Frequency:   row.Frequency,
		Interval:    row.Interval,
		EndType:     row.EndType,
		Occurrences: row.Occurrences,
		WeekDays:    decodeWeekdays(row.Weekdays),
		MonthlyType: row.MonthlyType,
		DayOfMonth:  intPtr(row.DayOfMonth),
		WeekOfMonth: intPtr(row.WeekOfMonth),
		Timezone:    row.Timezone,
	}
	if row.DayOfWeek.Valid {
		day := time.Weekday(row.DayOfWeek.Int64)
		rec.DayOfWeek = &day
	}
	if row.EndDate.Valid {
		end, err := time.Parse(timestampLayout, row.EndDate.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse end_date: %w", err)
		}
		rec.EndDate = &end
	}
	return rec, nil
}

func (row modificationRow) toModification() (persistence.Modification, error) {
	original, err := time.Parse(timestampLayout, row.OriginalDate)
	if err != nil {
		return persistence.Modification{}, fmt.Errorf("failed to parse original_date: %w", err)
	}
	mod := persistence.Modification{OriginalDate: original, IsDeleted: row.IsDeleted}
	if row.Patch.Valid {
		var patch persistence.EventPatch
		if err := json.Unmarshal([]byte(row.Patch.String), &patch); err != nil {
			return persistence.Modification{}, errors.Join(persistence.ErrConstraintViolation, fmt.Errorf("decode modification patch: %w", err))
		}
		mod.Patch = &patch
	}
	return mod, nil
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func nullInstant(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatInstant(*t), Valid: true}
}

// nullDate keeps the offset of a date-only value so that its calendar date
// can be recovered.
func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(timestampLayout), Valid: true}
}

func nullInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func intPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

// encodeWeekdays encodes weekdays as a bitmask for storage
func encodeWeekdays(weekdays []time.Weekday) int64 {
	var mask int64
	for _, day := range weekdays {
		if day >= time.Sunday && day <= time.Saturday {
			mask |= 1 << uint(day)
		}
	}
	return mask
}

// decodeWeekdays decodes weekdays from a bitmask
func decodeWeekdays(mask int64) []time.Weekday {
	var weekdays []time.Weekday
	for day := time.Sunday; day <= time.Saturday; day++ {
		if mask&(1<<uint(day)) != 0 {
			weekdays = append(weekdays, day)
		}
	}
	return weekdays
}
