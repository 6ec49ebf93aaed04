package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepo reads the identity directory. Profiles are written by the profile
// service; this core only looks them up.
type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

func (r *ProfileRepo) GetIdentity(ctx context.Context, userID int64) (model.Identity, error) {
	if userID <= 0 {
		return model.Identity{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return model.Identity{}, ErrPoolUnavailable
	}

	var (
		gender         string
		chatID         *int64
		notifyOnMatch  bool
		guardianChatID *int64
		guardianEmail  *string
	)
	err := r.pool.QueryRow(ctx, `
SELECT
	gender,
	telegram_chat_id,
	guardian_notify_on_match,
	guardian_telegram_chat_id,
	guardian_email
FROM profiles
WHERE user_id = $1
LIMIT 1
`, userID).Scan(&gender, &chatID, &notifyOnMatch, &guardianChatID, &guardianEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Identity{}, ErrProfileNotFound
		}
		return model.Identity{}, fmt.Errorf("get profile identity: %w", err)
	}

	genderClass, ok := enums.ParseGenderClass(gender)
	if !ok {
		return model.Identity{}, fmt.Errorf("profile %d has unknown gender %q", userID, gender)
	}

	identity := model.Identity{ID: userID, GenderClass: genderClass}
	if chatID != nil {
		identity.TelegramChatID = *chatID
	}
	if notifyOnMatch || guardianChatID != nil || guardianEmail != nil {
		guardian := &model.GuardianContact{NotifyOnMatch: notifyOnMatch}
		if guardianChatID != nil {
			guardian.TelegramChatID = *guardianChatID
		}
		if guardianEmail != nil {
			guardian.Email = *guardianEmail
		}
		identity.Guardian = guardian
	}

	return identity, nil
}

func (r *ProfileRepo) Exists(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, nil
	}
	if r.pool == nil {
		return false, ErrPoolUnavailable
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM profiles WHERE user_id = $1)
`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check profile exists: %w", err)
	}

	return exists, nil
}
