package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/nikah/backend/internal/domain/rules"
)

const defaultRetention = 7 * 24 * time.Hour

type counterPruner interface {
	DeleteIdleCounters(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job removes quota counters nobody has touched for a while. Quota itself never
// depends on it: an absent counter is recreated at zero on the next send.
type Job struct {
	counters  counterPruner
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func New(counters counterPruner, retention time.Duration, logger *zap.Logger) *Job {
	if retention < rules.QuotaWindow {
		retention = defaultRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		counters:  counters,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.counters == nil {
		return nil
	}

	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.counters.DeleteIdleCounters(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune idle quota counters: %w", err)
	}

	j.logger.Info("cleanup idle quota counters completed",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff),
	)
	return nil
}
