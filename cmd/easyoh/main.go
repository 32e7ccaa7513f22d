package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"github.com/WilliamHangXu/EasyOH/internal/application"
	"github.com/WilliamHangXu/EasyOH/internal/calendar"
	"github.com/WilliamHangXu/EasyOH/internal/config"
	httptransport "github.com/WilliamHangXu/EasyOH/internal/http"
	"github.com/WilliamHangXu/EasyOH/internal/maintenance"
	"github.com/WilliamHangXu/EasyOH/internal/officehour"
	"github.com/WilliamHangXu/EasyOH/internal/persistence/sqlite"
	"github.com/WilliamHangXu/EasyOH/internal/recurrence"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("office hours API stopped with error", "error", err)
		os.Exit(1)
	}
}

// app holds the long-lived components assembled from configuration.
type app struct {
	store   *sqlite.Store
	handler http.Handler
	janitor *maintenance.Janitor
}

func (a *app) Close() error {
	return a.store.Close()
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	store, err := sqlite.Open(ctx, cfg.SQLiteDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	now := time.Now
	idGenerator := uuid.NewString
	zone := cfg.Location

	materializer := officehour.NewMaterializer(officehour.MaterializerConfig{
		Zone:            zone,
		DefaultLocation: cfg.DefaultLocation,
		MinDuration:     cfg.MinDuration,
		Now:             now,
	})
	expander := recurrence.NewExpander(zone, cfg.HorizonMonths)

	authService := application.NewAuthService(store.Users, store.AuthorizedEmails, store.Sessions,
		application.Argon2idHasher(application.DefaultArgon2idParams), idGenerator, now, cfg.SessionTTL, logger)
	rosterService := application.NewRosterService(store.Users, store.AuthorizedEmails, now, logger)
	officeHourService := application.NewOfficeHourService(store.OfficeHours, materializer, expander, cfg.SuppressExceptions, idGenerator, now, logger)
	changeRequestService := application.NewChangeRequestService(store.ChangeRequests, store.OfficeHours, store,
		materializer, rosterService, idGenerator, now, logger)

	if cfg.BootstrapInstructor != "" {
		if err := rosterService.EnsureInstructor(ctx, cfg.BootstrapInstructor); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("authorize bootstrap instructor: %w", err)
		}
	}

	janitor, err := maintenance.NewJanitor(authService, maintenance.Config{
		Schedule: cfg.SessionPurgeSchedule,
		Location: zone,
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	feed := calendar.NewFeed(calendar.FeedConfig{Name: cfg.CalendarName, Zone: zone, Now: now, Logger: logger})
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(authService, logger),
		OfficeHours:    httptransport.NewOfficeHourHandler(officeHourService, zone, logger),
		ChangeRequests: httptransport.NewChangeRequestHandler(changeRequestService, zone, logger),
		Roster:         httptransport.NewRosterHandler(rosterService, logger),
		Calendar:       httptransport.NewCalendarHandler(officeHourService, rosterService, feed, logger),
		Sessions:       authService,
		Logger:         logger,
		Middleware:     []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	return &app{store: store, handler: router, janitor: janitor}, nil
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	logger.Info("office hours API listening", "addr", server.Addr, "timezone", cfg.Timezone)
	return serve(ctx, a, server, logger)
}

// serve runs the janitor alongside server. Both are stopped before it returns,
// whether ctx ends or the listener fails.
func serve(ctx context.Context, a *app, server *http.Server, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.janitor.Start(ctx)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
		if err := a.janitor.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop janitor", "error", err)
		}
	}()

	err := server.ListenAndServe()
	cancel()
	<-shutdownDone
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
