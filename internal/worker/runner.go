// Package worker runs event handlers off the request path.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/gap-pos/internal/events"
)

// Runner executes jobs in background goroutines with bounded concurrency.
type Runner struct {
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	slots   chan struct{}
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunner creates a runner allowing concurrency jobs at once. Each job gets timeout.
func NewRunner(concurrency int, timeout time.Duration, logger *zap.Logger) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		ctx:     ctx,
		cancel:  cancel,
		slots:   make(chan struct{}, concurrency),
		timeout: timeout,
		logger:  logger,
	}
}

// Go schedules job. It returns false once the runner is shutting down.
func (r *Runner) Go(name string, job func(ctx context.Context) error) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		select {
		case r.slots <- struct{}{}:
		case <-r.ctx.Done():
			return
		}
		defer func() { <-r.slots }()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("job panicked", zap.String("job", name), zap.Any("panic", rec))
			}
		}()

		ctx := r.ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		start := time.Now()
		if err := job(ctx); err != nil {
			r.logger.Warn("job failed", zap.String("job", name), zap.Duration("duration", time.Since(start)), zap.Error(err))
			return
		}
		r.logger.Debug("job done", zap.String("job", name), zap.Duration("duration", time.Since(start)))
	}()
	return true
}

// Async turns an event handler into one that runs on the runner. The publisher never waits.
func (r *Runner) Async(name string, h events.EventHandler) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		r.Go(name+":"+event.FlowID, func(ctx context.Context) error {
			return h(ctx, event)
		})
		return nil
	}
}

// Shutdown waits for running jobs until ctx ends, then cancels what is left.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
