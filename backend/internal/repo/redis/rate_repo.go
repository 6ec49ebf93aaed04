package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateRepo keeps fixed-window burst counters. A counter's TTL is set by the
// increment that creates it, so a window never extends while requests keep coming.
type RateRepo struct {
	client *goredis.Client
}

func NewRateRepo(client *goredis.Client) *RateRepo {
	return &RateRepo{client: client}
}

func (r *RateRepo) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, fmt.Errorf("redis client is nil")
	}
	if key == "" || window <= 0 {
		return 0, 0, fmt.Errorf("invalid rate window payload")
	}

	var (
		incr *goredis.IntCmd
		pttl *goredis.DurationCmd
	)
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("increment burst window %s: %w", key, err)
	}

	return incr.Val(), remaining(pttl.Val()), nil
}

// PTTL reports -1/-2 for keys without expiry or missing keys.
func remaining(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}
