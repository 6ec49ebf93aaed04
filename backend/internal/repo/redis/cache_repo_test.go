package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
)

type countingSource struct {
	identities map[int64]model.Identity
	gets       int
}

var errMissing = errors.New("missing")

func (s *countingSource) GetIdentity(_ context.Context, userID int64) (model.Identity, error) {
	s.gets++
	identity, ok := s.identities[userID]
	if !ok {
		return model.Identity{}, errMissing
	}
	return identity, nil
}

func (s *countingSource) Exists(_ context.Context, userID int64) (bool, error) {
	_, ok := s.identities[userID]
	return ok, nil
}

func TestIdentityCacheReadsThrough(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	source := &countingSource{identities: map[int64]model.Identity{
		7: {
			ID:          7,
			GenderClass: enums.GenderFemale,
			Guardian:    &model.GuardianContact{NotifyOnMatch: true, TelegramChatID: 900},
		},
	}}
	cache := NewIdentityCache(client, source, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		identity, err := cache.GetIdentity(ctx, 7)
		if err != nil {
			t.Fatalf("get identity #%d: %v", i+1, err)
		}
		if !identity.WantsGuardianMatchNotice() || identity.Guardian.TelegramChatID != 900 {
			t.Fatalf("unexpected cached identity: %+v", identity)
		}
	}
	if source.gets != 1 {
		t.Fatalf("unexpected source reads: got %d want 1", source.gets)
	}

	if err := cache.Invalidate(ctx, 7); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := cache.GetIdentity(ctx, 7); err != nil {
		t.Fatalf("get identity after invalidate: %v", err)
	}
	if source.gets != 2 {
		t.Fatalf("unexpected source reads after invalidate: got %d want 2", source.gets)
	}
}

func TestIdentityCacheDoesNotCacheMisses(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	source := &countingSource{identities: map[int64]model.Identity{}}
	cache := NewIdentityCache(client, source, 0)

	if _, err := cache.GetIdentity(context.Background(), 8); !errors.Is(err, errMissing) {
		t.Fatalf("expected source error, got %v", err)
	}
	if mr.Exists(identityKey(8)) {
		t.Fatalf("miss must not be cached")
	}
	exists, err := cache.Exists(context.Background(), 8)
	if err != nil || exists {
		t.Fatalf("unexpected exists result: %v %v", exists, err)
	}
}
