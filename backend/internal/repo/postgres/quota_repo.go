package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/nikah/backend/internal/domain/model"
)

type QuotaRepo struct {
	pool *pgxpool.Pool
}

func NewQuotaRepo(pool *pgxpool.Pool) *QuotaRepo {
	return &QuotaRepo{pool: pool}
}

// LockCounter creates the zero counter on first use and returns it locked for the
// rest of the transaction.
func (r *QuotaRepo) LockCounter(ctx context.Context, tx pgx.Tx, userID int64, now time.Time) (model.QuotaCounter, error) {
	if userID <= 0 {
		return model.QuotaCounter{}, fmt.Errorf("invalid quota lookup payload")
	}
	if tx == nil {
		return model.QuotaCounter{}, fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO interest_quotas (
	user_id,
	used,
	window_start,
	updated_at
) VALUES ($1, 0, $2, NOW())
ON CONFLICT (user_id) DO NOTHING
`, userID, now.UTC()); err != nil {
		return model.QuotaCounter{}, fmt.Errorf("ensure interest quota: %w", err)
	}

	counter := model.QuotaCounter{UserID: userID}
	err := tx.QueryRow(ctx, `
SELECT used, window_start
FROM interest_quotas
WHERE user_id = $1
FOR UPDATE
`, userID).Scan(&counter.Count, &counter.WindowStart)
	if err != nil {
		return model.QuotaCounter{}, fmt.Errorf("lock interest quota: %w", err)
	}

	return counter, nil
}

func (r *QuotaRepo) SaveCounter(ctx context.Context, tx pgx.Tx, counter model.QuotaCounter) error {
	if counter.UserID <= 0 || counter.Count < 0 {
		return fmt.Errorf("invalid quota update payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	_, err := tx.Exec(ctx, `
UPDATE interest_quotas
SET used = $2,
	window_start = $3,
	updated_at = NOW()
WHERE user_id = $1
`, counter.UserID, counter.Count, counter.WindowStart.UTC())
	if err != nil {
		return fmt.Errorf("save interest quota: %w", err)
	}

	return nil
}

// DeleteIdleCounters drops counters whose window started before cutoff. A missing
// counter reads as zero, so callers must pass a cutoff older than one window.
func (r *QuotaRepo) DeleteIdleCounters(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, ErrPoolUnavailable
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM interest_quotas
WHERE window_start < $1
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete idle interest quotas: %w", err)
	}

	return tag.RowsAffected(), nil
}
