package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type window struct {
	suffix string
	span   time.Duration
	limit  int64
}

// Limiter caps bursts of interest sends for identities that are exempt from the daily
// quota. Each window is a fixed Redis counter that expires on its own; a send is
// allowed only when every window is still under its limit.
type Limiter struct {
	store   WindowStore
	windows []window
}

func NewLimiter(store WindowStore, perMinute, per10Sec int) *Limiter {
	l := &Limiter{store: store}
	if perMinute > 0 {
		l.windows = append(l.windows, window{suffix: "min", span: time.Minute, limit: int64(perMinute)})
	}
	if per10Sec > 0 {
		l.windows = append(l.windows, window{suffix: "10s", span: 10 * time.Second, limit: int64(per10Sec)})
	}
	return l
}

// AllowSend counts one send against every window. When any window is over its limit
// the returned value is the number of seconds until the longest blocking window resets.
func (l *Limiter) AllowSend(ctx context.Context, userID int64) (int64, bool, error) {
	if userID <= 0 {
		return 0, false, fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	var retryAfter int64
	for _, w := range l.windows {
		count, ttl, err := l.store.IncrementWindow(ctx, w.key(userID), w.span)
		if err != nil {
			return 0, false, err
		}
		if count > w.limit {
			retryAfter = max(retryAfter, ceilSeconds(ttl))
		}
	}

	return retryAfter, retryAfter == 0, nil
}

func (w window) key(userID int64) string {
	return "rate:interests:" + w.suffix + ":" + strconv.FormatInt(userID, 10)
}

// ceilSeconds never returns zero for a blocked window, even one about to expire.
func ceilSeconds(d time.Duration) int64 {
	sec := int64((d + time.Second - 1) / time.Second)
	if sec < 1 {
		return 1
	}
	return sec
}
