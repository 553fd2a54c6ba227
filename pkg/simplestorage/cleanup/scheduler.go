// Package cleanup purges expired temporaries in the background.
//
// A Scheduler runs once at Start and then on every tick of its interval.
// Runs never overlap: a trigger arriving while a run is in progress is
// skipped and counted. Each expired temporary is purged independently, so
// a failing item is retried on the next run without blocking the others.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// DefaultInterval is used when no interval is configured.
const DefaultInterval = 15 * time.Minute

// Purger is the part of the service the scheduler drives.
type Purger interface {
	ExpiredTemporaries(ctx context.Context, now time.Time) ([]*simplestorage.Temporary, error)
	PurgeTemporary(ctx context.Context, temporary *simplestorage.Temporary) error
}

// Recorder receives run outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveCleanup(purged, failed int, elapsed time.Duration)
	ObserveCleanupSkipped()
}

// Result describes one cleanup run.
type Result struct {
	// Expired is the number of temporaries found expired
	Expired int
	// Purged is the number of temporaries whose blob and record were removed
	Purged int
	// Failed is the number of temporaries left for the next run
	Failed int
	// Skipped is set when another run was in progress and nothing was done
	Skipped bool
	// Duration of the run
	Duration time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the time between runs.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger. The scheduler adds a component attribute.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides time.Now for expiry selection.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Scheduler periodically purges expired temporaries across all tenants.
type Scheduler struct {
	purger   Purger
	interval time.Duration
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time

	runMu sync.Mutex // held for the duration of a run

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
}

// New creates a scheduler driving purger.
func New(purger Purger, opts ...Option) (*Scheduler, error) {
	if purger == nil {
		return nil, errors.New("purger is required")
	}

	s := &Scheduler{
		purger:   purger,
		interval: DefaultInterval,
		logger:   slog.Default(),
		recorder: noopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "cleanup"))
	return s, nil
}

// Interval returns the configured time between runs.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start launches the background loop. It returns an error if the
// scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.cancel != nil {
		return errors.New("cleanup scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx, s.done)

	s.logger.Info("cleanup scheduler started", slog.String("interval", s.interval.String()))
	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.lifecycleMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.lifecycleMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("cleanup scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("cleanup run failed", slog.String("error", err.Error()))
	}
}

// RunOnce performs a single run. If a run is already in progress it
// returns immediately with Skipped set. An error is returned only when
// the expired set could not be listed; per-item failures are counted.
func (s *Scheduler) RunOnce(ctx context.Context) (*Result, error) {
	if !s.runMu.TryLock() {
		s.recorder.ObserveCleanupSkipped()
		s.logger.Debug("cleanup run skipped, previous run still in progress")
		return &Result{Skipped: true}, nil
	}
	defer s.runMu.Unlock()

	start := time.Now()
	result := &Result{}

	expired, err := s.purger.ExpiredTemporaries(ctx, s.now().UTC())
	if err != nil {
		result.Duration = time.Since(start)
		s.recorder.ObserveCleanup(0, 0, result.Duration)
		return result, fmt.Errorf("list expired temporaries: %w", err)
	}
	result.Expired = len(expired)

	for _, tmp := range expired {
		if err := ctx.Err(); err != nil {
			// remaining items are picked up by the next run
			result.Failed += result.Expired - result.Purged - result.Failed
			break
		}
		if err := s.purger.PurgeTemporary(ctx, tmp); err != nil {
			result.Failed++
			s.logger.Error("failed to purge expired temporary",
				slog.String("tenant_id", tmp.TenantID.String()),
				slog.String("id", tmp.ID.String()),
				slog.String("storage_path", tmp.StoragePath),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Purged++
	}

	result.Duration = time.Since(start)
	s.recorder.ObserveCleanup(result.Purged, result.Failed, result.Duration)

	s.logger.Info("cleanup run finished",
		slog.Int("expired", result.Expired),
		slog.Int("purged", result.Purged),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

type noopRecorder struct{}

func (noopRecorder) ObserveCleanup(int, int, time.Duration) {}
func (noopRecorder) ObserveCleanupSkipped()                 {}
