package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Refresher reloads the conversation list
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshScheduler periodically reconciles the conversation list with the server
type RefreshScheduler struct {
	target   Refresher
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefreshScheduler creates a scheduler; a non-positive interval disables it
func NewRefreshScheduler(target Refresher, interval, timeout time.Duration, log zerolog.Logger) *RefreshScheduler {
	return &RefreshScheduler{
		target:   target,
		interval: interval,
		timeout:  timeout,
		log:      log,
	}
}

// Start runs one refresh immediately, then one per interval
func (s *RefreshScheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info().Msg("Periodic refresh disabled")
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.refreshLoop()

	s.log.Info().Dur("interval", s.interval).Msg("Refresh scheduler started")
}

// Stop stops the scheduler and waits for an in-flight refresh
func (s *RefreshScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *RefreshScheduler) refreshLoop() {
	defer s.wg.Done()

	s.refresh()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

func (s *RefreshScheduler) refresh() {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
	}
	if err := s.target.Refresh(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Periodic refresh failed")
	}
}
