package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/example/personal-calendar/internal/application"
	"github.com/example/personal-calendar/internal/config"
	httptransport "github.com/example/personal-calendar/internal/http"
	"github.com/example/personal-calendar/internal/ical"
	"github.com/example/personal-calendar/internal/logging"
	"github.com/example/personal-calendar/internal/maintenance"
	"github.com/example/personal-calendar/internal/persistence"
	"github.com/example/personal-calendar/internal/persistence/memory"
	"github.com/example/personal-calendar/internal/persistence/sqlite"
)

const maintenanceTimeout = time.Minute

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		source, err := passwordSource(os.Stdin, os.Stderr)
		if err == nil {
			err = hashPassword(source, os.Stdout)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "hash-password:", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(os.Stdout, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("calendar service stopped with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		format = logging.FormatJSON
	}
	return logging.New(w, level, format)
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	app, err := newApplication(cfg, store, uuid.NewString, time.Now, logger)
	if err != nil {
		return err
	}

	scheduler, err := maintenance.NewScheduler(cfg.MaintenanceCron, maintenanceTimeout, logger, app.maintenanceJobs()...)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := scheduler.Stop(stopCtx); err != nil {
			logger.Error("failed to stop maintenance scheduler", "error", err)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("calendar API listening",
		"addr", server.Addr,
		"storage", cfg.Storage,
		"timezone", cfg.Location.String(),
		"auth", cfg.AuthEnabled(),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// storage is an event repository together with its lifecycle hooks. Ping and
// Optimize are nil when the backend has nothing to check or tune.
type storage struct {
	events   persistence.EventRepository
	ping     func(ctx context.Context) error
	optimize maintenance.Optimizer
	close    func() error
}

func (s storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		mem := memory.Open()
		logger.Warn("using in-memory storage; events are lost on restart")
		return storage{events: mem, close: mem.Close}, nil
	case config.StorageSQLite:
		pool, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLiteDSN))
		if err != nil {
			return storage{}, fmt.Errorf("open storage: %w", err)
		}
		if err := pool.Migrate(ctx, logger); err != nil {
			_ = pool.Close()
			return storage{}, fmt.Errorf("apply migrations: %w", err)
		}
		return storage{
			events:   sqlite.NewEventRepository(pool),
			ping:     pool.Ping,
			optimize: pool,
			close:    pool.Close,
		}, nil
	}
	return storage{}, fmt.Errorf("unsupported storage %q", cfg.Storage)
}

// calendarApp bundles the wired service graph.
type calendarApp struct {
	events  *application.EventService
	store   storage
	handler http.Handler
	logger  *slog.Logger
}

func newApplication(cfg config.Config, store storage, idGenerator func() string, now func() time.Time, logger *slog.Logger) (*calendarApp, error) {
	events := application.NewEventService(newEventRepositoryAdapter(store.events), idGenerator, now, application.EventServiceOptions{
		Location:         cfg.Location,
		SplitFutureEdits: cfg.SplitFutureEdits,
		SearchHorizon:    cfg.SearchHorizon,
		CacheTTL:         cfg.CacheTTL,
		CacheMaxEntries:  cfg.CacheMaxEntries,
		Logger:           logger,
	})

	routerCfg := httptransport.RouterConfig{
		Events:     httptransport.NewEventHandler(events, logger),
		Recurrence: httptransport.NewRecurrenceHandler(events, logger),
		Calendar:   httptransport.NewCalendarHandler(events, ical.NewExporter(cfg.Location, now), logger),
		Health:     store.ping,
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	}

	if cfg.AuthEnabled() {
		auth, err := application.NewAuthService(cfg.AuthUser, cfg.AuthPasswordHash, logger)
		if err != nil {
			return nil, fmt.Errorf("configure authentication: %w", err)
		}
		routerCfg.Auth = httptransport.RequireBasicAuth(auth, "", logger)
	}

	return &calendarApp{
		events:  events,
		store:   store,
		handler: httptransport.NewRouter(routerCfg),
		logger:  logger,
	}, nil
}

func (a *calendarApp) maintenanceJobs() []maintenance.Job {
	jobs := []maintenance.Job{maintenance.CachePurgeJob(a.events, a.logger)}
	if a.store.optimize != nil {
		jobs = append(jobs, maintenance.OptimizeJob(a.store.optimize))
	}
	return jobs
}

// hashPassword reads a password from the first line of r and writes its
// argon2id hash, ready for CALENDAR_AUTH_PASSWORD_HASH.
func hashPassword(r io.Reader, w io.Writer) error {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("password must not be empty")
	}
	hash, err := application.CreatePasswordHash(password, application.DefaultArgon2idParams)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, hash)
	return err
}

// passwordSource prompts for a masked password when stdin is a terminal and
// otherwise reads stdin as is.
func passwordSource(stdin *os.File, prompt io.Writer) (io.Reader, error) {
	fd := int(stdin.Fd())
	if !term.IsTerminal(fd) {
		return stdin, nil
	}
	fmt.Fprint(prompt, "Password: ")
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return strings.NewReader(string(secret) + "\n"), nil
}
