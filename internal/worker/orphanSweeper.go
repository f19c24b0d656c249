package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/shortcode"
	"github.com/atinyakov/shortlink/internal/storage"
)

const sweepBatch = 100

type OrphanRepo interface {
	FindOrphans(ctx context.Context, olderThan time.Time, limit int) ([]storage.Link, error)
	Update(context.Context, storage.Link) error
}

// OrphanSweeper finalizes links left without a short code by an interrupted
// two-phase create. Rows younger than grace are still in flight and skipped.
type OrphanSweeper struct {
	logger   *zap.Logger
	repo     OrphanRepo
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
}

func NewOrphanSweeper(logger *zap.Logger, repo OrphanRepo, interval, grace time.Duration) *OrphanSweeper {
	return &OrphanSweeper{
		logger:   logger,
		repo:     repo,
		interval: interval,
		grace:    grace,
		now:      time.Now,
	}
}

func (s *OrphanSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}

// SweepOnce finalizes one batch of orphans and returns how many it touched.
func (s *OrphanSweeper) SweepOnce(ctx context.Context) (int, error) {
	orphans, err := s.repo.FindOrphans(ctx, s.now().Add(-s.grace), sweepBatch)
	if err != nil {
		s.logger.Error("cannot list orphans", zap.Error(err))
		return 0, err
	}

	done := 0
	for _, l := range orphans {
		l.ShortCode = shortcode.FromID(l.ID)
		err := storage.ErrAliasTaken
		if !shortcode.Reserved(l.ShortCode) {
			err = s.repo.Update(ctx, l)
		}

		if errors.Is(err, storage.ErrAliasTaken) {
			l.ShortCode = ""
			l.IsActive = false
			err = s.repo.Update(ctx, l)
			s.logger.Info("orphan code unavailable, deactivated", zap.Int64("id", l.ID))
		}
		if err != nil {
			s.logger.Error("cannot finalize orphan", zap.Int64("id", l.ID), zap.Error(err))
			continue
		}
		done++
	}

	if done > 0 {
		s.logger.Info("finalized orphans", zap.Int("count", done))
	}
	return done, nil
}
