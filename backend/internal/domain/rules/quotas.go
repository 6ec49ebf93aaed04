package rules

import (
	"time"

	"github.com/ivankudzin/nikah/backend/internal/domain/model"
)

const (
	DailyInterestLimit = 3
	QuotaWindow        = 24 * time.Hour
)

// RollQuota returns the counter as it must be seen at now: a window that has run for at
// least the full length restarts at now with a zero count. A zero WindowStart is treated as
// a fresh counter. The second result reports whether a roll happened.
func RollQuota(counter model.QuotaCounter, now time.Time, window time.Duration) (model.QuotaCounter, bool) {
	if window <= 0 {
		window = QuotaWindow
	}
	if counter.WindowStart.IsZero() {
		counter.WindowStart = now
		counter.Count = 0
		return counter, true
	}
	if now.Sub(counter.WindowStart) >= window {
		counter.WindowStart = now
		counter.Count = 0
		return counter, true
	}
	return counter, false
}

func RemainingQuota(count, limit int) int {
	left := limit - count
	if left < 0 {
		return 0
	}
	return left
}

// QuotaResetIn is the time left until the counter window rolls over.
func QuotaResetIn(counter model.QuotaCounter, now time.Time, window time.Duration) time.Duration {
	if window <= 0 {
		window = QuotaWindow
	}
	left := window - now.Sub(counter.WindowStart)
	if left < 0 {
		return 0
	}
	return left
}
