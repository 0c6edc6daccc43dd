// Package redisstore keeps ledger snapshots in Redis.
package redisstore

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/minishop/internal/domain/account"
)

const keyPrefix = "minishop:snapshot:"

var _ account.Store = (*Store)(nil)

// Store implements account.Store on a Redis client. Snapshots never expire.
type Store struct {
	client redis.UniversalClient
}

// NewStore returns a Store using client.
func NewStore(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Load returns the snapshot saved under key.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, account.ErrNoSnapshot
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %q", key)
	}
	return data, nil
}

// Save replaces the snapshot under key.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, keyPrefix+key, data, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis set %q", key)
	}
	return nil
}

// Ping reports whether the server answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
