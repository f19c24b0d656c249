// Package worker runs the background loops: click aggregation and orphan
// reconciliation.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/storage"
)

const DefaultFlushInterval = 5 * time.Second

// ClickRepo applies drained click deltas in one transaction. Codes with no
// matching link are skipped. A failed commit wraps storage.ErrCommitUnknown.
type ClickRepo interface {
	BatchIncrementClickCounts(context.Context, map[string]int64) error
}

// PendingCounter is the drain side of the pending click counter.
type PendingCounter interface {
	DrainAll(context.Context) (map[string]int64, error)
	Restore(context.Context, map[string]int64) error
}

// ClickAggregator is the only writer of click counts. It drains the pending
// counter on a fixed interval and folds the deltas into the store.
type ClickAggregator struct {
	logger   *zap.Logger
	repo     ClickRepo
	counter  PendingCounter
	interval time.Duration
	timeout  time.Duration
}

func NewClickAggregator(logger *zap.Logger, repo ClickRepo, counter PendingCounter, interval time.Duration) *ClickAggregator {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}

	return &ClickAggregator{
		logger:   logger,
		repo:     repo,
		counter:  counter,
		interval: interval,
		timeout:  10 * time.Second,
	}
}

// Run flushes every interval until ctx is done, then flushes once more so
// clicks recorded before shutdown are not left behind.
func (a *ClickAggregator) Run(ctx context.Context) error {
	a.logger.Info("click aggregator started", zap.Duration("interval", a.interval))
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
			_, _ = a.FlushOnce(final)
			cancel()
			a.logger.Info("click aggregator stopped")
			return nil
		case <-ticker.C:
			_, _ = a.FlushOnce(ctx)
		}
	}
}

// FlushOnce runs a single iteration and reports how many codes it applied.
// Errors are logged. When the apply fails before commit the deltas go back
// to the counter; an unconfirmed commit is never retried.
func (a *ClickAggregator) FlushOnce(ctx context.Context) (int, error) {
	deltas, err := a.counter.DrainAll(ctx)
	if err != nil {
		a.logger.Error("cannot drain pending clicks", zap.Error(err))
		return 0, err
	}
	if len(deltas) == 0 {
		return 0, nil
	}

	applyCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.repo.BatchIncrementClickCounts(applyCtx, deltas); err != nil {
		a.logger.Error("cannot apply click counts", zap.Int("codes", len(deltas)), zap.Error(err))

		// The batch may already be durable; restoring could count it twice.
		if errors.Is(err, storage.ErrCommitUnknown) {
			a.logger.Error("click counts commit unconfirmed, not restoring", zap.Any("deltas", deltas))
			return 0, err
		}

		if rerr := a.counter.Restore(context.WithoutCancel(ctx), deltas); rerr != nil {
			a.logger.Error("cannot restore pending clicks, deltas lost",
				zap.Any("deltas", deltas),
				zap.Error(rerr),
			)
		}
		return 0, err
	}

	a.logger.Debug("flushed click counts", zap.Int("codes", len(deltas)))
	return len(deltas), nil
}
