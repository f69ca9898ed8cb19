package cache

import (
	"context"
	"errors"
	"testing"

	"sociapi/database/memstore"
	"sociapi/domain"
)

func seedProfile(t *testing.T) (*memstore.Store, *domain.Profile) {
	t.Helper()
	ms := memstore.New()
	user := &domain.User{Username: "alice", Email: "alice@example.com"}
	profile := &domain.Profile{Name: "Alice"}
	if err := ms.Users().Create(context.Background(), user, profile); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	return ms, profile
}

func TestProfileCacheReadThrough(t *testing.T) {
	ms, seeded := seedProfile(t)
	r, _ := newTestRedis(t)
	pc := NewProfileCache(r, ms.Profiles(), 0)
	ctx := context.Background()

	if _, err := r.Get(ctx, profileKey(seeded.UserID)); !errors.Is(err, ErrMiss) {
		t.Fatal("cache should start empty")
	}
	p, err := pc.Get(ctx, seeded.UserID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Name != "Alice" {
		t.Fatalf("name = %q", p.Name)
	}
	if _, err := r.Get(ctx, profileKey(seeded.UserID)); err != nil {
		t.Fatalf("miss did not populate the cache: %v", err)
	}

	cached, err := pc.Get(ctx, seeded.UserID)
	if err != nil || cached.Name != "Alice" || cached.Version != p.Version {
		t.Fatalf("cached = %+v, %v", cached, err)
	}
}

func TestProfileCacheWriteThrough(t *testing.T) {
	ms, seeded := seedProfile(t)
	r, _ := newTestRedis(t)
	pc := NewProfileCache(r, ms.Profiles(), 0)
	ctx := context.Background()

	if _, err := pc.Get(ctx, seeded.UserID); err != nil {
		t.Fatalf("Get: %v", err)
	}

	fresh, _ := ms.Profiles().ByUserID(ctx, seeded.UserID)
	fresh.Name = "Alice B."
	if err := ms.Profiles().Update(ctx, fresh); err != nil {
		t.Fatalf("Update: %v", err)
	}
	pc.Set(ctx, fresh)

	got, err := pc.Get(ctx, seeded.UserID)
	if err != nil || got.Name != "Alice B." {
		t.Fatalf("stale profile served: %+v, %v", got, err)
	}
}

func TestProfileCacheWithoutBackend(t *testing.T) {
	ms, seeded := seedProfile(t)
	pc := NewProfileCache(nil, ms.Profiles(), 0)

	p, err := pc.Get(context.Background(), seeded.UserID)
	if err != nil || p.UserID != seeded.UserID {
		t.Fatalf("Get = %+v, %v", p, err)
	}
	if _, err := pc.Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected not found")
	}
}

func TestProfileCacheSurvivesBrokenBackend(t *testing.T) {
	ms, seeded := seedProfile(t)
	pc := NewProfileCache(&failingStore{err: errors.New("down")}, ms.Profiles(), 0)

	p, err := pc.Get(context.Background(), seeded.UserID)
	if err != nil || p.Name != "Alice" {
		t.Fatalf("Get = %+v, %v", p, err)
	}
	pc.Set(context.Background(), p)
	pc.Invalidate(context.Background(), p.UserID)
}
