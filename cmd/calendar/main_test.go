package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/personal-calendar/internal/application"
	"github.com/example/personal-calendar/internal/config"
	"github.com/example/personal-calendar/internal/persistence"
	"github.com/example/personal-calendar/internal/persistence/memory"
	"github.com/example/personal-calendar/internal/recurrence"
	"github.com/example/personal-calendar/internal/testfixtures"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Storage = config.StorageMemory
	cfg.Timezone = "UTC"
	cfg.Location = time.UTC
	return cfg
}

func repositories(t *testing.T) map[string]persistence.EventRepository {
	t.Helper()
	return map[string]persistence.EventRepository{
		"memory": memory.Open(),
		"sqlite": testfixtures.NewSQLiteHarness(t).Events,
	}
}

func TestEventRepositoryAdapterRoundTrip(t *testing.T) {
	t.Parallel()

	base := testfixtures.ReferenceTime()
	second := base.Add(25 * time.Hour)
	third := base.Add(49 * time.Hour)
	fourth := base.Add(73 * time.Hour)

	series := testfixtures.NewEventFixture(
		testfixtures.WithEventID("series-1"),
		testfixtures.WithEventTitle("Standup"),
		testfixtures.WithEventCategory(application.CategoryWork),
		testfixtures.WithEventPriority(application.PriorityHigh),
		testfixtures.WithEventStatus(application.StatusTentative),
		testfixtures.WithEventPattern(testfixtures.DailyPattern(5)),
		testfixtures.WithEventException(second),
		testfixtures.WithEventOverride(third, recurrence.EventPatch{Title: mo.Some("Standup (moved)")}),
		testfixtures.WithEventDeletedOccurrence(fourth),
	).Application()

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			adapter := newEventRepositoryAdapter(repo)

			created, err := adapter.CreateEvent(ctx, series)
			require.NoError(t, err)
			assert.Equal(t, "series-1", created.ID)
			assert.Equal(t, application.CategoryWork, created.Category)
			assert.Equal(t, application.PriorityHigh, created.Priority)
			assert.Equal(t, application.StatusTentative, created.Status)
			assert.True(t, created.Start.Equal(series.Start))

			require.True(t, created.IsRecurring())
			pattern := created.Recurrence.Pattern
			assert.Equal(t, recurrence.FrequencyDaily, pattern.Frequency)
			assert.Equal(t, recurrence.EndAfterOccurrences, pattern.EndType)
			assert.Equal(t, 5, pattern.Occurrences)
			require.Len(t, pattern.Exceptions, 1)
			assert.Equal(t, second.Format(time.DateOnly), pattern.Exceptions[0].UTC().Format(time.DateOnly))

			require.Len(t, created.Recurrence.Modifications, 2)
			var moved, deleted bool
			for _, mod := range created.Recurrence.Modifications {
				switch {
				case mod.IsDeleted:
					deleted = mod.OriginalDate.Equal(fourth)
				case mod.ModifiedEvent != nil:
					moved = mod.OriginalDate.Equal(third) && mod.ModifiedEvent.Title.OrEmpty() == "Standup (moved)"
					assert.True(t, mod.ModifiedEvent.Location.IsAbsent())
				}
			}
			assert.True(t, moved, "expected override to survive the round trip")
			assert.True(t, deleted, "expected deleted occurrence to survive the round trip")

			created.Title = "Daily standup"
			created.Recurrence = nil
			updated, err := adapter.UpdateEvent(ctx, created)
			require.NoError(t, err)
			assert.Equal(t, "Daily standup", updated.Title)
			assert.False(t, updated.IsRecurring())

			end := base.Add(48 * time.Hour)
			events, err := adapter.ListEvents(ctx, application.EventRepositoryFilter{StartsBefore: &end})
			require.NoError(t, err)
			require.Len(t, events, 1)

			require.NoError(t, adapter.DeleteEvent(ctx, "series-1"))
			_, err = adapter.GetEvent(ctx, "series-1")
			assert.ErrorIs(t, err, persistence.ErrNotFound)
		})
	}
}

func TestNewApplicationServesAPI(t *testing.T) {
	t.Parallel()

	store := memory.Open()
	app, err := newApplication(testConfig(), storage{events: store, close: store.Close},
		testfixtures.NewIDGenerator("evt").NextFunc(), testfixtures.NewClock(time.Time{}).NowFunc(), discardLogger())
	require.NoError(t, err)

	body := `{"title":"Standup","start":"2024-01-01T09:00:00Z","end":"2024-01-01T09:15:00Z",` +
		`"recurrence":{"frequency":"daily","end_type":"afterOccurrences","occurrences":3}}`
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events?start=2024-01-01&end=2024-01-31", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, strings.Count(rec.Body.String(), `"parent_event_id":"evt-1"`))

	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Len(t, app.maintenanceJobs(), 1)
}

func TestNewApplicationRequiresConfiguredCredentials(t *testing.T) {
	t.Parallel()

	hash, err := application.CreatePasswordHash("s3cret", application.Argon2idParams{
		Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16,
	})
	require.NoError(t, err)

	cfg := testConfig()
	cfg.AuthUser = "alice"
	cfg.AuthPasswordHash = hash

	harness := testfixtures.NewSQLiteHarness(t)
	app, err := newApplication(cfg, storage{events: harness.Events, ping: harness.Pool.Ping, optimize: harness.Pool},
		testfixtures.NewIDGenerator("evt").NextFunc(), time.Now, discardLogger())
	require.NoError(t, err)
	assert.Len(t, app.maintenanceJobs(), 2)

	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/categories", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/categories", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("alice:s3cret")))
	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApplicationRejectsMalformedHash(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.AuthUser = "alice"
	cfg.AuthPasswordHash = "plaintext"

	_, err := newApplication(cfg, storage{events: memory.Open()}, nil, nil, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configure authentication")
}

func TestHashPassword(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, hashPassword(strings.NewReader("correct horse\n"), &out))

	hash := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.NoError(t, application.VerifyPassword(hash, "correct horse"))

	err := hashPassword(strings.NewReader("\n"), &out)
	assert.Error(t, err)
}

func TestPasswordSourceReadsPipedInput(t *testing.T) {
	t.Parallel()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	_, err = w.WriteString("piped secret\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var prompt bytes.Buffer
	source, err := passwordSource(r, &prompt)
	require.NoError(t, err)
	assert.Empty(t, prompt.String(), "no prompt without a terminal")

	var out bytes.Buffer
	require.NoError(t, hashPassword(source, &out))
	assert.NoError(t, application.VerifyPassword(strings.TrimSpace(out.String()), "piped secret"))
}

func TestNewLoggerFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg := testConfig()
	cfg.LogLevel = "loud"
	cfg.LogFormat = "xml"

	logger := newLogger(&buf, cfg)
	logger.Debug("hidden")
	logger.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
