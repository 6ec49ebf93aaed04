package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
)

var ErrEntitlementNotFound = errors.New("entitlement not found")

type EntitlementRepo struct {
	pool *pgxpool.Pool
}

func NewEntitlementRepo(pool *pgxpool.Pool) *EntitlementRepo {
	return &EntitlementRepo{pool: pool}
}

const entitlementColumns = `
	user_id,
	tier,
	status,
	external_subscription_ref,
	valid_from,
	valid_until,
	unlimited_interest_sending,
	can_see_media,
	priority_matching,
	guardian_badge,
	elevated_interest_allowance,
	updated_at`

func (r *EntitlementRepo) Get(ctx context.Context, userID int64) (model.Entitlement, error) {
	if userID <= 0 {
		return model.Entitlement{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return model.Entitlement{}, ErrPoolUnavailable
	}

	ent, err := scanEntitlement(r.pool.QueryRow(ctx, `
SELECT`+entitlementColumns+`
FROM entitlements
WHERE user_id = $1
LIMIT 1
`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Entitlement{}, ErrEntitlementNotFound
		}
		return model.Entitlement{}, fmt.Errorf("get entitlement: %w", err)
	}

	return ent, nil
}

// InsertDefault stores ent unless a row already exists and returns whatever row
// ends up persisted, so concurrent first reads converge on one record.
func (r *EntitlementRepo) InsertDefault(ctx context.Context, ent model.Entitlement) (model.Entitlement, error) {
	if ent.UserID <= 0 {
		return model.Entitlement{}, fmt.Errorf("invalid entitlement payload")
	}
	if r.pool == nil {
		return model.Entitlement{}, ErrPoolUnavailable
	}

	_, err := r.pool.Exec(ctx, `
INSERT INTO entitlements (
	user_id,
	tier,
	status,
	external_subscription_ref,
	valid_from,
	valid_until,
	unlimited_interest_sending,
	can_see_media,
	priority_matching,
	guardian_badge,
	elevated_interest_allowance,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
ON CONFLICT (user_id) DO NOTHING
`, entitlementArgs(ent)...)
	if err != nil {
		return model.Entitlement{}, fmt.Errorf("insert default entitlement: %w", err)
	}

	return r.Get(ctx, ent.UserID)
}

// Upsert replaces the full record keyed on user_id in one statement.
func (r *EntitlementRepo) Upsert(ctx context.Context, ent model.Entitlement) (model.Entitlement, error) {
	if ent.UserID <= 0 {
		return model.Entitlement{}, fmt.Errorf("invalid entitlement payload")
	}
	if r.pool == nil {
		return model.Entitlement{}, ErrPoolUnavailable
	}

	stored, err := scanEntitlement(r.pool.QueryRow(ctx, `
INSERT INTO entitlements (
	user_id,
	tier,
	status,
	external_subscription_ref,
	valid_from,
	valid_until,
	unlimited_interest_sending,
	can_see_media,
	priority_matching,
	guardian_badge,
	elevated_interest_allowance,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
ON CONFLICT (user_id) DO UPDATE SET
	tier = EXCLUDED.tier,
	status = EXCLUDED.status,
	external_subscription_ref = EXCLUDED.external_subscription_ref,
	valid_from = EXCLUDED.valid_from,
	valid_until = EXCLUDED.valid_until,
	unlimited_interest_sending = EXCLUDED.unlimited_interest_sending,
	can_see_media = EXCLUDED.can_see_media,
	priority_matching = EXCLUDED.priority_matching,
	guardian_badge = EXCLUDED.guardian_badge,
	elevated_interest_allowance = EXCLUDED.elevated_interest_allowance,
	updated_at = NOW()
RETURNING`+entitlementColumns, entitlementArgs(ent)...))
	if err != nil {
		return model.Entitlement{}, fmt.Errorf("upsert entitlement: %w", err)
	}

	return stored, nil
}

func (r *EntitlementRepo) LockByRef(ctx context.Context, tx pgx.Tx, ref string) (model.Entitlement, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Entitlement{}, fmt.Errorf("subscription ref is required")
	}
	if tx == nil {
		return model.Entitlement{}, fmt.Errorf("transaction is required")
	}

	ent, err := scanEntitlement(tx.QueryRow(ctx, `
SELECT`+entitlementColumns+`
FROM entitlements
WHERE external_subscription_ref = $1
FOR UPDATE
`, ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Entitlement{}, ErrEntitlementNotFound
		}
		return model.Entitlement{}, fmt.Errorf("lock entitlement by ref: %w", err)
	}

	return ent, nil
}

func (r *EntitlementRepo) Save(ctx context.Context, tx pgx.Tx, ent model.Entitlement) error {
	if ent.UserID <= 0 {
		return fmt.Errorf("invalid entitlement payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	_, err := tx.Exec(ctx, `
UPDATE entitlements
SET tier = $2,
	status = $3,
	external_subscription_ref = $4,
	valid_from = $5,
	valid_until = $6,
	unlimited_interest_sending = $7,
	can_see_media = $8,
	priority_matching = $9,
	guardian_badge = $10,
	elevated_interest_allowance = $11,
	updated_at = NOW()
WHERE user_id = $1
`, entitlementArgs(ent)...)
	if err != nil {
		return fmt.Errorf("save entitlement: %w", err)
	}

	return nil
}

// UpdateWindowByRef applies the provider window and status unconditionally.
func (r *EntitlementRepo) UpdateWindowByRef(
	ctx context.Context,
	ref string,
	validFrom, validUntil time.Time,
	status enums.EntitlementStatus,
) (int64, bool, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || !status.Valid() {
		return 0, false, fmt.Errorf("invalid entitlement window payload")
	}
	if r.pool == nil {
		return 0, false, ErrPoolUnavailable
	}

	var userID int64
	err := r.pool.QueryRow(ctx, `
UPDATE entitlements
SET valid_from = $2,
	valid_until = $3,
	status = $4,
	updated_at = NOW()
WHERE external_subscription_ref = $1
RETURNING user_id
`, ref, nullableTime(validFrom), nullableTime(validUntil), string(status)).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("update entitlement window: %w", err)
	}

	return userID, true, nil
}

func (r *EntitlementRepo) SetStatusByRef(ctx context.Context, ref string, status enums.EntitlementStatus) (int64, bool, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || !status.Valid() {
		return 0, false, fmt.Errorf("invalid entitlement status payload")
	}
	if r.pool == nil {
		return 0, false, ErrPoolUnavailable
	}

	var userID int64
	err := r.pool.QueryRow(ctx, `
UPDATE entitlements
SET status = $2,
	updated_at = NOW()
WHERE external_subscription_ref = $1
RETURNING user_id
`, ref, string(status)).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("set entitlement status by ref: %w", err)
	}

	return userID, true, nil
}

func (r *EntitlementRepo) SetStatus(ctx context.Context, userID int64, status enums.EntitlementStatus) (bool, error) {
	if userID <= 0 || !status.Valid() {
		return false, fmt.Errorf("invalid entitlement status payload")
	}
	if r.pool == nil {
		return false, ErrPoolUnavailable
	}

	result, err := r.pool.Exec(ctx, `
UPDATE entitlements
SET status = $2,
	updated_at = NOW()
WHERE user_id = $1
`, userID, string(status))
	if err != nil {
		return false, fmt.Errorf("set entitlement status: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func entitlementArgs(ent model.Entitlement) []any {
	return []any{
		ent.UserID,
		string(ent.Tier),
		string(ent.Status),
		ent.ExternalSubscriptionRef,
		ent.ValidFrom,
		ent.ValidUntil,
		ent.Flags.UnlimitedInterestSending,
		ent.Flags.CanSeeMedia,
		ent.Flags.PriorityMatching,
		ent.Flags.GuardianBadge,
		ent.Flags.ElevatedInterestAllowance,
	}
}

func scanEntitlement(row pgx.Row) (model.Entitlement, error) {
	var (
		ent    model.Entitlement
		tier   string
		status string
	)
	if err := row.Scan(
		&ent.UserID,
		&tier,
		&status,
		&ent.ExternalSubscriptionRef,
		&ent.ValidFrom,
		&ent.ValidUntil,
		&ent.Flags.UnlimitedInterestSending,
		&ent.Flags.CanSeeMedia,
		&ent.Flags.PriorityMatching,
		&ent.Flags.GuardianBadge,
		&ent.Flags.ElevatedInterestAllowance,
		&ent.UpdatedAt,
	); err != nil {
		return model.Entitlement{}, err
	}
	ent.Tier = enums.Tier(tier)
	ent.Status = enums.EntitlementStatus(status)
	return ent, nil
}

func nullableTime(value time.Time) *time.Time {
	if value.IsZero() {
		return nil
	}
	utc := value.UTC()
	return &utc
}
