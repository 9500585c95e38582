package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper runs scheduled Cleanup passes against a store so expired health
// and quota entries do not accumulate. Schedules use standard cron syntax;
// the default configuration sweeps every minute because quota windows
// expire after two.
type Sweeper struct {
	store    Store
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper for the given store and cron schedule.
func NewSweeper(store Store, schedule string, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "store.sweeper"),
	}
}

// Start begins scheduled sweeping. An empty schedule disables the sweeper.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("cleanup schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runCleanup(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("store sweeper started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runCleanup executes one sweep.
func (s *Sweeper) runCleanup(ctx context.Context) {
	removed, err := s.store.Cleanup(ctx)
	if err != nil {
		s.logger.Error("scheduled cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Debug("scheduled cleanup completed", "removed", removed)
	}
}

// Stop stops the sweeper and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("store sweeper stopped")
	}
}

// IsRunning reports whether the sweeper is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep time, if any.
func (s *Sweeper) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
