// Package dispatchloop runs the background dispatch cycle on an interval,
// with queue wake notifications cutting the latency between cycles.
package dispatchloop

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gitgauge/gitgauge/internal/core"
	"github.com/gitgauge/gitgauge/internal/service"
)

// Dispatcher is the surface of the dispatcher service the loop drives.
type Dispatcher interface {
	DispatchOnce(ctx context.Context) service.DispatchResult
	QueueName() string
}

// Options configures the dispatch loop.
type Options struct {
	Dispatcher Dispatcher
	Queue      core.QueueRepository
	// Interval is the fallback cadence when no wake notifications arrive.
	Interval time.Duration
	// NotificationWindow bounds each listen so the connection is recycled.
	NotificationWindow time.Duration
	Logger             *slog.Logger
}

// Loop drives the dispatcher until its context ends. Each trigger drains the
// queue one message at a time, stopping at the first idle or error cycle.
type Loop struct {
	dispatcher         Dispatcher
	queue              core.QueueRepository
	interval           time.Duration
	notificationWindow time.Duration
	logger             *slog.Logger
}

// New creates a dispatch loop.
func New(opts Options) *Loop {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	window := opts.NotificationWindow
	if window <= 0 {
		window = time.Minute
	}
	return &Loop{
		dispatcher:         opts.Dispatcher,
		queue:              opts.Queue,
		interval:           interval,
		notificationWindow: window,
		logger:             logger,
	}
}

// Run blocks until ctx ends. It returns nil on a clean shutdown.
func (l *Loop) Run(ctx context.Context) error {
	queue := l.dispatcher.QueueName()
	l.logger.InfoContext(ctx, "starting dispatch loop",
		"queue", queue, "interval", l.interval)

	wake := make(chan struct{}, 1)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.listen(ctx, queue, wake) })
	g.Go(func() error { return l.cycle(ctx, wake) })

	err := g.Wait()
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// listen forwards queue wake notifications into the wake channel. Listen
// failures degrade the loop to interval-only polling, so they are logged and
// retried rather than returned.
func (l *Loop) listen(ctx context.Context, queue string, wake chan<- struct{}) error {
	for ctx.Err() == nil {
		listenCtx, cancel := context.WithTimeout(ctx, l.notificationWindow)
		err := l.queue.WaitForWake(listenCtx, queue)
		cancel()

		switch {
		case err == nil:
			select {
			case wake <- struct{}{}:
			default:
			}
		case errors.Is(err, context.DeadlineExceeded):
			// Window lapsed without a notification, listen again.
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			l.logger.WarnContext(ctx, "queue wake listen failed, falling back to interval",
				"queue", queue, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.interval):
			}
		}
	}
	return ctx.Err()
}

func (l *Loop) cycle(ctx context.Context, wake <-chan struct{}) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	// Prime one cycle at startup so restarts drain promptly.
	l.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.drain(ctx)
		case <-wake:
			l.drain(ctx)
		}
	}
}

// drain runs dispatch cycles back to back until the queue is idle or a cycle
// reports an error.
func (l *Loop) drain(ctx context.Context) {
	for ctx.Err() == nil {
		result := l.dispatcher.DispatchOnce(ctx)
		if result.Outcome != service.OutcomeDispatched {
			return
		}
	}
}
