package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// Memcache stores entries in one or more memcached servers.
type Memcache struct {
	client *memcache.Client
}

// NewMemcache returns a client for the given servers. Connections are
// opened lazily.
func NewMemcache(servers ...string) *Memcache {
	return &Memcache{client: memcache.New(servers...)}
}

func (m *Memcache) Get(ctx context.Context, key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

func (m *Memcache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(ttl / time.Second),
	})
}

func (m *Memcache) Del(ctx context.Context, key string) error {
	err := m.client.Delete(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

func (m *Memcache) Close() error { return nil }
