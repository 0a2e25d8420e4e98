package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pixelatlas/conquest-engine/internal/adapter"
	"github.com/pixelatlas/conquest-engine/internal/logger"
)

// PassFunc runs a single bounded sweep pass. Errors are logged and the loop
// continues; the next tick re-reads current state anyway.
type PassFunc func(ctx context.Context) error

// runner implements the Sweeper interface around a periodic pass
type runner struct {
	name      string
	interval  time.Duration
	pass      PassFunc
	clock     adapter.Clock
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewRunner creates a sweeper that executes pass every interval
func NewRunner(name string, interval time.Duration, clock adapter.Clock, pass PassFunc) Sweeper {
	return &runner{
		name:      name,
		interval:  interval,
		pass:      pass,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (r *runner) Name() string {
	return r.name
}

// Start begins the sweeper's main loop
func (r *runner) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper %s already running", r.name)
	}
	defer func() {
		r.running.Store(false)
		close(r.stoppedCh) // Signal that we've stopped
	}()

	logger.InfoCtx(ctx, "Starting sweeper",
		zap.String("sweeper", r.name),
		zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Sweeper stopping due to context cancellation",
				zap.String("sweeper", r.name), zap.Error(ctx.Err()))
			return nil
		case <-r.stopChan:
			logger.InfoCtx(ctx, "Sweeper stop requested", zap.String("sweeper", r.name))
			return nil
		default:
			if err := r.pass(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err, zap.String("sweeper", r.name))
				}
			}
			if !r.sleep(ctx, r.interval) {
				return nil
			}
		}
	}
}

// Stop gracefully stops the sweeper with timeout support
func (r *runner) Stop(ctx context.Context) error {
	if !r.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping sweeper", zap.String("sweeper", r.name))
	close(r.stopChan)

	select {
	case <-r.stoppedCh:
		logger.InfoCtx(ctx, "Sweeper stopped gracefully", zap.String("sweeper", r.name))
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Sweeper stop interrupted by context timeout",
			zap.String("sweeper", r.name))
		return ctx.Err()
	}
}

// sleep sleeps for the given duration but can be interrupted by context
// cancellation or a stop request. Returns false when interrupted.
func (r *runner) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-r.clock.After(duration):
		return true
	case <-ctx.Done():
		return false
	case <-r.stopChan:
		return false
	}
}
