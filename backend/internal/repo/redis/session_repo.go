package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	authsvc "github.com/ivankudzin/nikah/backend/internal/services/auth"
)

const sessionPrefix = "sessions:"

// SessionRepo reads the session hashes the login service maintains. Logout there
// deletes the hash, which revokes every access token bound to it.
type SessionRepo struct {
	client *goredis.Client
}

func NewSessionRepo(client *goredis.Client) *SessionRepo {
	return &SessionRepo{client: client}
}

func (r *SessionRepo) GetSession(ctx context.Context, sid string) (authsvc.SessionRecord, error) {
	if r.client == nil {
		return authsvc.SessionRecord{}, fmt.Errorf("redis client is nil")
	}

	values, err := r.client.HGetAll(ctx, sessionPrefix+sid).Result()
	if err != nil {
		return authsvc.SessionRecord{}, fmt.Errorf("get session hash: %w", err)
	}
	if len(values) == 0 {
		return authsvc.SessionRecord{}, authsvc.ErrSessionNotFound
	}

	userID, err := strconv.ParseInt(values["user_id"], 10, 64)
	if err != nil || userID <= 0 {
		return authsvc.SessionRecord{}, authsvc.ErrUnauthorized
	}
	expiresUnix, err := strconv.ParseInt(values["expires_at"], 10, 64)
	if err != nil {
		return authsvc.SessionRecord{}, authsvc.ErrUnauthorized
	}

	return authsvc.SessionRecord{
		SID:       sid,
		UserID:    userID,
		ExpiresAt: time.Unix(expiresUnix, 0).UTC(),
	}, nil
}
