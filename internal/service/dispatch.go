package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher runs post-commit side effects in the background. Tasks get
// their own timeout and outlive the request that started them.
type Dispatcher struct {
	wg      sync.WaitGroup
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher whose tasks time out after timeout.
func NewDispatcher(timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{timeout: timeout, logger: logger}
}

// Go runs fn in a goroutine. A failure is logged at warn and never returned.
func (d *Dispatcher) Go(ctx context.Context, task string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				d.logger.ErrorContext(ctx, "post-commit task panicked",
					slog.String("task", task),
					slog.Any("panic", rec),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			d.logger.WarnContext(ctx, "post-commit task failed",
				slog.String("task", task),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait blocks until every started task finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
