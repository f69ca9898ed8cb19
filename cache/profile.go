package cache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"

	"sociapi/domain"
	"sociapi/logging"
	"sociapi/metrics"
)

// DefaultProfileTTL is how long a cached profile lives.
const DefaultProfileTTL = 1800 * time.Second

// ProfileCache is a read-through, write-through cache of profiles keyed by
// user id. Backend failures are logged and fall back to the store, so the
// cache never decides the outcome of a request.
type ProfileCache struct {
	store    Store
	profiles domain.ProfileStore
	ttl      time.Duration
}

var _ domain.ProfileCache = &ProfileCache{}

// NewProfileCache returns a ProfileCache reading misses from profiles.
func NewProfileCache(store Store, profiles domain.ProfileStore, ttl time.Duration) *ProfileCache {
	if store == nil {
		store = Noop{}
	}
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	return &ProfileCache{store: store, profiles: profiles, ttl: ttl}
}

// cachedProfile keeps the version, which the json form of a Profile omits.
type cachedProfile struct {
	*domain.Profile
	Version int64 `json:"version"`
}

func profileKey(userID string) string {
	return "profile:" + userID
}

// Get returns the profile of userID from the cache, or loads it from the
// store and caches it.
func (c *ProfileCache) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	b, err := c.store.Get(ctx, profileKey(userID))
	switch {
	case err == nil:
		var cp cachedProfile
		if err := json.Unmarshal(b, &cp); err == nil && cp.Profile != nil {
			metrics.CacheResult(metrics.CacheHit)
			cp.Profile.Version = cp.Version
			return cp.Profile, nil
		}
		metrics.CacheResult(metrics.CacheError)
		logging.Ctx(ctx).Warn().Str("user_id", userID).Msg("dropping undecodable cached profile")
	case errors.Is(err, ErrMiss):
		metrics.CacheResult(metrics.CacheMiss)
	default:
		metrics.CacheResult(metrics.CacheError)
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("profile cache read failed")
	}

	p, err := c.profiles.ByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.Set(ctx, p)
	return p, nil
}

// Set overwrites the cached copy of p.
func (c *ProfileCache) Set(ctx context.Context, p *domain.Profile) {
	b, err := json.Marshal(cachedProfile{Profile: p, Version: p.Version})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("user_id", p.UserID).Msg("encoding profile for cache")
		return
	}
	if err := c.store.Set(ctx, profileKey(p.UserID), b, c.ttl); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", p.UserID).Msg("profile cache write failed")
		// An old entry must not outlive a failed overwrite.
		c.Invalidate(ctx, p.UserID)
	}
}

// Invalidate drops the cached profile of userID.
func (c *ProfileCache) Invalidate(ctx context.Context, userID string) {
	if err := c.store.Del(ctx, profileKey(userID)); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("profile cache delete failed")
	}
}
