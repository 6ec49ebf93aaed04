package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
)

var (
	ErrInterestExists   = errors.New("interest already exists")
	ErrInterestNotFound = errors.New("interest not found")
)

type InterestRepo struct {
	pool *pgxpool.Pool
}

func NewInterestRepo(pool *pgxpool.Pool) *InterestRepo {
	return &InterestRepo{pool: pool}
}

const interestColumns = `
	id,
	source_user_id,
	target_user_id,
	kind,
	note,
	status,
	mutual,
	created_at`

// LockPair takes a transaction-scoped advisory lock on the unordered pair so the
// reverse-edge check and the mutual flip of two crossing sends never interleave.
func (r *InterestRepo) LockPair(ctx context.Context, tx pgx.Tx, userA, userB int64) error {
	if userA <= 0 || userB <= 0 {
		return fmt.Errorf("invalid pair lock payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	if userA > userB {
		userA, userB = userB, userA
	}

	key := "interest:" + strconv.FormatInt(userA, 10) + ":" + strconv.FormatInt(userB, 10)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("lock interest pair: %w", err)
	}

	return nil
}

func (r *InterestRepo) Exists(ctx context.Context, tx pgx.Tx, sourceUserID, targetUserID int64) (bool, error) {
	if sourceUserID <= 0 || targetUserID <= 0 {
		return false, fmt.Errorf("invalid interest lookup payload")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	var one int
	err := tx.QueryRow(ctx, `
SELECT 1
FROM interests
WHERE source_user_id = $1 AND target_user_id = $2
LIMIT 1
`, sourceUserID, targetUserID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup interest: %w", err)
	}

	return true, nil
}

func (r *InterestRepo) Insert(ctx context.Context, tx pgx.Tx, edge model.InterestEdge) (model.InterestEdge, error) {
	if edge.SourceUserID <= 0 || edge.TargetUserID <= 0 {
		return model.InterestEdge{}, fmt.Errorf("invalid interest payload")
	}
	if tx == nil {
		return model.InterestEdge{}, fmt.Errorf("transaction is required")
	}

	created, err := scanInterest(tx.QueryRow(ctx, `
INSERT INTO interests (
	source_user_id,
	target_user_id,
	kind,
	note,
	status,
	mutual,
	created_at
) VALUES ($1, $2, $3, $4, $5, FALSE, NOW())
RETURNING`+interestColumns, edge.SourceUserID, edge.TargetUserID, string(edge.Kind), edge.Note, string(edge.Status)))
	if err != nil {
		if isUniqueViolation(err) {
			return model.InterestEdge{}, ErrInterestExists
		}
		return model.InterestEdge{}, fmt.Errorf("insert interest: %w", err)
	}

	return created, nil
}

func (r *InterestRepo) GetDirectedForUpdate(ctx context.Context, tx pgx.Tx, sourceUserID, targetUserID int64) (model.InterestEdge, error) {
	if sourceUserID <= 0 || targetUserID <= 0 {
		return model.InterestEdge{}, fmt.Errorf("invalid interest lookup payload")
	}
	if tx == nil {
		return model.InterestEdge{}, fmt.Errorf("transaction is required")
	}

	edge, err := scanInterest(tx.QueryRow(ctx, `
SELECT`+interestColumns+`
FROM interests
WHERE source_user_id = $1 AND target_user_id = $2
FOR UPDATE
`, sourceUserID, targetUserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.InterestEdge{}, ErrInterestNotFound
		}
		return model.InterestEdge{}, fmt.Errorf("get directed interest: %w", err)
	}

	return edge, nil
}

// MarkMutual flips both edges in one statement; anything other than two rows aborts
// the surrounding transaction.
func (r *InterestRepo) MarkMutual(ctx context.Context, tx pgx.Tx, edgeID, reverseEdgeID int64) error {
	if edgeID <= 0 || reverseEdgeID <= 0 || edgeID == reverseEdgeID {
		return fmt.Errorf("invalid mutual payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE interests
SET mutual = TRUE
WHERE id = ANY($1)
`, []int64{edgeID, reverseEdgeID})
	if err != nil {
		return fmt.Errorf("mark interests mutual: %w", err)
	}
	if result.RowsAffected() != 2 {
		return fmt.Errorf("mark interests mutual: expected 2 rows, got %d", result.RowsAffected())
	}

	return nil
}

func (r *InterestRepo) DeleteBySource(ctx context.Context, edgeID, sourceUserID int64) (bool, error) {
	if edgeID <= 0 || sourceUserID <= 0 {
		return false, fmt.Errorf("invalid interest delete payload")
	}
	if r.pool == nil {
		return false, ErrPoolUnavailable
	}

	result, err := r.pool.Exec(ctx, `
DELETE FROM interests
WHERE id = $1 AND source_user_id = $2
`, edgeID, sourceUserID)
	if err != nil {
		return false, fmt.Errorf("delete interest: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *InterestRepo) ListByTarget(ctx context.Context, userID int64, limit int) ([]model.InterestEdge, error) {
	return r.list(ctx, `target_user_id = $1`, userID, limit)
}

func (r *InterestRepo) ListBySource(ctx context.Context, userID int64, limit int) ([]model.InterestEdge, error) {
	return r.list(ctx, `source_user_id = $1`, userID, limit)
}

func (r *InterestRepo) ListMutualBySource(ctx context.Context, userID int64, limit int) ([]model.InterestEdge, error) {
	return r.list(ctx, `source_user_id = $1 AND mutual = TRUE`, userID, limit)
}

func (r *InterestRepo) list(ctx context.Context, where string, userID int64, limit int) ([]model.InterestEdge, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 100
	}
	if r.pool == nil {
		return nil, ErrPoolUnavailable
	}

	rows, err := r.pool.Query(ctx, `
SELECT`+interestColumns+`
FROM interests
WHERE `+where+`
ORDER BY created_at DESC, id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list interests: %w", err)
	}
	defer rows.Close()

	items := make([]model.InterestEdge, 0, limit)
	for rows.Next() {
		edge, err := scanInterest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interest: %w", err)
		}
		items = append(items, edge)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate interests: %w", rows.Err())
	}

	return items, nil
}

func scanInterest(row pgx.Row) (model.InterestEdge, error) {
	var (
		edge   model.InterestEdge
		kind   string
		status string
	)
	if err := row.Scan(
		&edge.ID,
		&edge.SourceUserID,
		&edge.TargetUserID,
		&kind,
		&edge.Note,
		&status,
		&edge.Mutual,
		&edge.CreatedAt,
	); err != nil {
		return model.InterestEdge{}, err
	}
	edge.Kind = enums.InterestKind(kind)
	edge.Status = enums.InterestStatus(status)
	return edge, nil
}
