package claim

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/paytoken/internal/constants"
)

// Sweeper reconciles one user's queue in the background: on a fixed
// interval, and immediately whenever NotifyOnline is called.
type Sweeper struct {
	engine   *Engine
	uid      string
	interval time.Duration
	logger   zerolog.Logger

	trigger chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a Sweeper for uid. A non-positive interval uses
// DefaultSweepInterval.
func NewSweeper(engine *Engine, uid string, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = constants.DefaultSweepInterval
	}
	return &Sweeper{
		engine:   engine,
		uid:      uid,
		interval: interval,
		logger:   engine.logger.With().Str("uid", uid).Logger(),
		trigger:  make(chan struct{}, 1),
	}
}

// Start begins background sweeping. Calling Start on a running Sweeper does nothing.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Msg("sweeper stopped")
			}
		}()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.run(ctx)
			case <-s.trigger:
				s.run(ctx)
			}
		}
	}()
}

// Stop cancels background sweeping and waits for an in-flight sweep to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.cancel = nil
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// NotifyOnline requests an immediate sweep. Requests made while one is
// already waiting are coalesced.
func (s *Sweeper) NotifyOnline() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Sweeper) run(ctx context.Context) {
	if _, err := s.engine.Sweep(ctx, s.uid); err != nil {
		s.logger.Warn().Err(err).Msg("sweep failed")
	}
}

// WatchConnectivity polls conn every interval and calls NotifyOnline on each
// offline to online transition. It blocks until ctx is done.
func (s *Sweeper) WatchConnectivity(ctx context.Context, conn Connectivity, interval time.Duration) {
	if interval <= 0 {
		interval = constants.DefaultConnectivityInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	online := conn.Online(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := conn.Online(ctx)
			if now && !online {
				s.logger.Info().Msg("connectivity regained")
				s.NotifyOnline()
			}
			online = now
		}
	}
}
