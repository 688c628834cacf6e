// Package redis implements storage.Backend on top of Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/petshop-storefront/internal/storage"
)

var _ storage.Backend = (*Backend)(nil)

// Backend stores each visitor key as a plain Redis string. Every write
// refreshes the TTL so idle visitors expire on their own.
type Backend struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a Backend using client. A zero ttl keeps keys forever.
func New(client *redis.Client, ttl time.Duration) *Backend {
	return &Backend{client: client, ttl: ttl}
}

// Dial parses a redis:// URL and returns a connected Backend.
func Dial(ctx context.Context, url string, ttl time.Duration) (*Backend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return New(client, ttl), nil
}

// Namespace returns the KV view for sessionID.
func (b *Backend) Namespace(sessionID string) storage.KV {
	return &namespace{b: b, id: sessionID}
}

// Ping checks connectivity.
func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (b *Backend) Close() error {
	return b.client.Close()
}

type namespace struct {
	b  *Backend
	id string
}

func (n *namespace) Get(ctx context.Context, key string) (string, error) {
	v, err := n.b.client.Get(ctx, cacheKey(n.id, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "redis get %q", key)
	}
	return v, nil
}

func (n *namespace) Set(ctx context.Context, key, value string) error {
	if err := n.b.client.Set(ctx, cacheKey(n.id, key), value, n.b.ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set %q", key)
	}
	return nil
}

func (n *namespace) Delete(ctx context.Context, key string) error {
	if err := n.b.client.Del(ctx, cacheKey(n.id, key)).Err(); err != nil {
		return errors.Wrapf(err, "redis delete %q", key)
	}
	return nil
}

func cacheKey(sessionID, key string) string {
	return "storefront:" + sessionID + ":" + key
}
