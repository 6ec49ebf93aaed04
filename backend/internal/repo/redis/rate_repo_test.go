package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newRateRepo(t *testing.T) (*RateRepo, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRateRepo(client), mr
}

func TestIncrementWindowKeepsFirstExpiry(t *testing.T) {
	repo, mr := newRateRepo(t)
	ctx := context.Background()

	count, ttl, err := repo.IncrementWindow(ctx, "rate:interest:1:m", time.Minute)
	if err != nil {
		t.Fatalf("first increment: %v", err)
	}
	if count != 1 || ttl != time.Minute {
		t.Fatalf("unexpected first window: count=%d ttl=%s", count, ttl)
	}

	mr.FastForward(40 * time.Second)

	count, ttl, err = repo.IncrementWindow(ctx, "rate:interest:1:m", time.Minute)
	if err != nil {
		t.Fatalf("second increment: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if ttl > 20*time.Second {
		t.Fatalf("window must not be extended, ttl=%s", ttl)
	}

	mr.FastForward(21 * time.Second)

	count, _, err = repo.IncrementWindow(ctx, "rate:interest:1:m", time.Minute)
	if err != nil {
		t.Fatalf("increment after expiry: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected fresh window after expiry, got %d", count)
	}
}
