// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package alerts

import (
	"context"
	"sync"
	"time"

	"apimetrics/platform/shared/logger"
)

// defaultSweepInterval matches the original 5-minute background job
const defaultSweepInterval = 5 * time.Minute

// Sweeper periodically runs full alert evaluation sweeps. It owns its
// ticker and goroutine: Start launches, Stop cancels the loop and
// waits for an in-flight sweep to finish so last_triggered_at is never
// written by an abandoned goroutine.
type Sweeper struct {
	evaluator *Evaluator
	interval  time.Duration
	logger    *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper. A non-positive interval uses the
// default.
func NewSweeper(evaluator *Evaluator, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{
		evaluator: evaluator,
		interval:  interval,
		logger:    logger.New("sweeper"),
	}
}

// Start runs one sweep immediately, then one per interval, until Stop
// is called or the parent context is canceled. Calling Start on a
// running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
	s.logger.Info("", "", "Alert sweeper started", map[string]interface{}{
		"interval": s.interval.String(),
	})
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if err := s.evaluator.RunSweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorWithErr("", "", "Alert sweep failed", err, nil)
	}
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
// Safe to call on a stopped sweeper.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("", "", "Alert sweeper stopped", nil)
}
