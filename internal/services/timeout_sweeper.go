package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultSweepInterval = 30 * time.Second
	defaultSweepBatch    = 100
)

// TimeoutSweeper periodically finalizes attempts whose deadline passed
// while the student was offline. Online timeouts are caught at the next
// save or submit; the sweeper covers everyone else.
type TimeoutSweeper struct {
	attempts AttemptService
	logger   *slog.Logger
	interval time.Duration
	batch    int

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewTimeoutSweeper(attempts AttemptService, logger *slog.Logger, interval time.Duration, batch int) *TimeoutSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &TimeoutSweeper{
		attempts: attempts,
		logger:   logger,
		interval: interval,
		batch:    batch,
	}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a
// no-op.
func (s *TimeoutSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("Timeout sweeper started", "interval", s.interval, "batch", s.batch)
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Timeout sweeper stopped")
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *TimeoutSweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

func (s *TimeoutSweeper) sweep(ctx context.Context) {
	count, err := s.attempts.SweepExpired(ctx, s.batch)
	if err != nil {
		s.logger.Error("Timeout sweep failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("Timeout sweep finalized attempts", "count", count)
	}
}
