// Package maintenance runs periodic housekeeping jobs for the service.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/WilliamHangXu/EasyOH/internal/logging"
)

const defaultJobTimeout = 30 * time.Second

// SessionPurger removes sessions that can no longer authenticate.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// Config tunes a Janitor.
type Config struct {
	// Schedule is a standard cron expression or descriptor such as "@every 1h".
	Schedule string
	// Location is the zone the schedule is evaluated in. Defaults to UTC.
	Location   *time.Location
	JobTimeout time.Duration
	Logger     *slog.Logger
}

// Janitor purges expired and revoked sessions on a cron schedule.
type Janitor struct {
	purger     SessionPurger
	logger     *slog.Logger
	jobTimeout time.Duration
	cron       *cron.Cron

	mu      sync.Mutex
	baseCtx context.Context
	running bool
}

// NewJanitor validates the schedule and registers the purge job. The job does
// not run until Start is called.
func NewJanitor(purger SessionPurger, cfg Config) (*Janitor, error) {
	if purger == nil {
		return nil, errors.New("maintenance: session purger is nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}

	adapter := cronLogger{logger: logger.With("component", "janitor")}
	j := &Janitor{
		purger:     purger,
		logger:     adapter.logger,
		jobTimeout: timeout,
		baseCtx:    context.Background(),
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
	}
	if _, err := j.cron.AddFunc(cfg.Schedule, j.run); err != nil {
		return nil, fmt.Errorf("maintenance: invalid schedule %q: %w", cfg.Schedule, err)
	}
	return j, nil
}

// Start begins running the purge job in the background. Jobs inherit values
// (such as the logger) from ctx but not its cancellation.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	if ctx != nil {
		j.baseCtx = context.WithoutCancel(ctx)
	}
	j.running = true
	j.mu.Unlock()
	j.cron.Start()
	j.logger.InfoContext(ctx, "janitor started", "next_run", j.NextRun())
}

// Stop halts the schedule and waits for a running purge to finish or for ctx
// to expire.
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
	done := j.cron.Stop()
	select {
	case <-done.Done():
		j.logger.InfoContext(ctx, "janitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the schedule is active.
func (j *Janitor) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// NextRun reports when the purge job is next due. It is zero before Start.
func (j *Janitor) NextRun() time.Time {
	entries := j.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce purges immediately and returns the number of sessions removed.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, j.jobTimeout)
	defer cancel()
	ctx = logging.ContextWithLogger(ctx, j.logger)
	return j.purger.PurgeExpiredSessions(ctx)
}

func (j *Janitor) run() {
	j.mu.Lock()
	ctx := j.baseCtx
	j.mu.Unlock()

	started := time.Now()
	removed, err := j.RunOnce(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "session purge run failed", "error", err, "duration", time.Since(started))
		return
	}
	j.logger.DebugContext(ctx, "session purge run finished", "removed", removed, "duration", time.Since(started))
}

// cronLogger routes cron's own diagnostics to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
