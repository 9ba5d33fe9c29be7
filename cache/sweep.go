package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mediakit/catalog-client/telemetry"
)

const (
	// defaultTTL is how long a durable entry lives before the sweep
	// removes it.
	defaultTTL = 30 * 24 * time.Hour

	// defaultSweepInterval is how often the background sweep runs.
	defaultSweepInterval = 6 * time.Hour
)

// SweeperConfig holds sweeper configuration.
type SweeperConfig struct {
	// TTL is the maximum durable entry age. Default: 30 days.
	TTL time.Duration

	// Interval between background sweeps. Default: 6 hours.
	Interval time.Duration

	// Logger for sweep events.
	Logger *slog.Logger
}

// SweepResult summarises one sweep pass.
type SweepResult struct {
	Expired    int
	Unreadable int
	BytesFreed int64
	Errors     int
	Duration   time.Duration
}

// Sweeper periodically removes expired durable entries and re-applies
// the memory-tier budgets.
type Sweeper struct {
	cache    *Cache
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSweeper creates a sweeper over the cache. Call Start to begin
// background sweeps, or RunOnce for a single synchronous pass.
func NewSweeper(cache *Cache, cfg SweeperConfig) *Sweeper {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sweeper{
		cache:    cache,
		ttl:      cfg.TTL,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// Start launches the background sweep loop. It returns immediately;
// the loop runs until Stop is called or ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop(ctx, s.stopCh, s.doneCh)
}

// Stop halts the background loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (s *Sweeper) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			result, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Error("cache sweep failed", "error", err)
				continue
			}
			if result.Expired > 0 || result.Unreadable > 0 {
				s.logger.Info("cache sweep complete",
					"expired", result.Expired,
					"unreadable", result.Unreadable,
					"bytes_freed", result.BytesFreed,
					"errors", result.Errors,
					"duration", result.Duration)
			}
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce performs a single sweep: it removes durable entries older
// than the TTL along with unreadable entries, then re-applies the
// memory-tier budgets.
func (s *Sweeper) RunOnce(ctx context.Context) (*SweepResult, error) {
	start := s.now()
	cutoff := start.Add(-s.ttl)

	entries, unreadable, err := s.cache.durable.findExpired(cutoff)
	if err != nil {
		return nil, err
	}

	removed, freed, errs := s.cache.removeExpired(entries)
	s.cache.enforceMemoryBudgets(ctx)

	result := &SweepResult{
		Expired:    removed - unreadable,
		Unreadable: unreadable,
		BytesFreed: freed,
		Errors:     errs,
		Duration:   s.now().Sub(start),
	}
	if result.Expired < 0 {
		result.Expired = 0
	}
	telemetry.RecordSweep(ctx, removed, result.Duration)
	return result, nil
}
