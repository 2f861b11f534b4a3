package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSweepSchedule is how often idle conversations are looked for.
const DefaultSweepSchedule = "@every 1m"

// Sweeper periodically drops conversations that have been idle for longer
// than a TTL.
type Sweeper struct {
	store    Store
	ttl      time.Duration
	schedule string
	logger   *zap.Logger
	now      func() time.Time

	// OnSweep, when set, is called after every sweep with the number of
	// conversations removed.
	OnSweep func(removed int)

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewSweeper creates a Sweeper. An empty schedule uses DefaultSweepSchedule.
func NewSweeper(store Store, ttl time.Duration, schedule string, logger *zap.Logger) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Sweeper{
		store:    store,
		ttl:      ttl,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
	}
}

// Start schedules sweeping until ctx is done or Stop is called. A
// non-positive TTL disables the sweeper.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl <= 0 {
		s.logger.Info("idle conversation eviction disabled")
		return nil
	}
	if s.running {
		return nil
	}

	// A stopped cron keeps its entries, so every start gets a fresh one.
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("idle conversation sweeper started",
		zap.String("schedule", s.schedule),
		zap.Duration("ttl", s.ttl),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Sweep removes conversations idle for longer than the TTL once.
func (s *Sweeper) Sweep(ctx context.Context) int {
	removed, err := s.store.EvictIdle(ctx, s.now().Add(-s.ttl))
	if err != nil {
		s.logger.Error("idle conversation sweep failed", zap.Error(err))
		return 0
	}

	if removed > 0 {
		s.logger.Info("evicted idle conversations", zap.Int("count", removed))
	} else {
		s.logger.Debug("idle conversation sweep found nothing")
	}
	if s.OnSweep != nil {
		s.OnSweep(removed)
	}
	return removed
}

// Stop stops the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("idle conversation sweeper stopped")
}
