package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/personal-calendar/internal/application"
)

type fakeAuthenticator struct {
	username string
	password string
	err      error
}

func (f fakeAuthenticator) Authenticate(ctx context.Context, username, password string) error {
	if f.err != nil {
		return f.err
	}
	if username != f.username || password != f.password {
		return application.ErrInvalidCredentials
	}
	return nil
}

func TestRequireBasicAuth(t *testing.T) {
	t.Parallel()

	auth := fakeAuthenticator{username: "alice", password: "s3cret"}

	tests := []struct {
		name           string
		auth           Authenticator
		setCredentials bool
		username       string
		password       string
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "missing credentials",
			auth:           auth,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "AUTH_REQUIRED",
		},
		{
			name:           "wrong password",
			auth:           auth,
			setCredentials: true,
			username:       "alice",
			password:       "guess",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "AUTH_INVALID_CREDENTIALS",
		},
		{
			name:           "authenticator failure",
			auth:           fakeAuthenticator{err: errors.New("hash unavailable")},
			setCredentials: true,
			username:       "alice",
			password:       "s3cret",
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			handler := RequireBasicAuth(tc.auth, "", slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("next handler should not be called when authentication fails")
			}))

			req := httptest.NewRequest(http.MethodGet, "/events", nil)
			if tc.setCredentials {
				req.SetBasicAuth(tc.username, tc.password)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.expectedStatus {
				t.Fatalf("expected status %d, got %d", tc.expectedStatus, rec.Code)
			}
			if tc.expectedCode != "" {
				if !strings.Contains(rec.Body.String(), tc.expectedCode) {
					t.Fatalf("expected error code %q in body %s", tc.expectedCode, rec.Body.String())
				}
				if got := rec.Header().Get("WWW-Authenticate"); got != `Basic realm="calendar", charset="UTF-8"` {
					t.Fatalf("unexpected challenge header %q", got)
				}
			}
		})
	}

	t.Run("attaches username to request context", func(t *testing.T) {
		t.Parallel()

		var captured string
		handler := RequireBasicAuth(auth, "", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name, ok := UsernameFromContext(r.Context())
			if !ok {
				t.Fatal("expected username in request context")
			}
			captured = name
			w.WriteHeader(http.StatusNoContent)
		}))

		req := httptest.NewRequest(http.MethodGet, "/events", nil)
		req.SetBasicAuth("alice", "s3cret")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d", rec.Code)
		}
		if captured != "alice" {
			t.Fatalf("expected username alice, got %q", captured)
		}
	})

	t.Run("router keeps healthz outside authentication", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{
			Calendar: NewCalendarHandler(nil, nil, nil),
			Auth:     RequireBasicAuth(auth, "", slog.New(slog.DiscardHandler)),
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected healthz to answer 200, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/categories", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected categories to require auth, got %d", rec.Code)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if LoggerFromContext(r.Context()) == nil {
			t.Fatal("expected request logger in context")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status 418, got %d", rec.Code)
	}
	out := buf.String()
	for _, want := range []string{`"msg":"request completed"`, `"status":418`, `"path":"/events"`, `"request_id":1`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in log output %s", want, out)
		}
	}
}
