// Package redisstore persists blobs in Redis, so several console hosts can share a profile.
package redisstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/masomo-console/core"
)

type Store struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ core.Storage = (*Store)(nil)

// New stores keys under prefix; a ttl of 0 keeps them forever.
func New(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Open connects to conf.Addr and checks the connection.
func Open(ctx context.Context, conf core.RedisConfig, profile string) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "redis.Ping(%s)", conf.Addr)
	}
	prefix := conf.Prefix
	if profile != "" {
		prefix += profile + ":"
	}
	return New(rdb, prefix, conf.TTL), nil
}

func (s *Store) key(k string) string { return s.prefix + k }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrKeyNotFound
		}
		return nil, errors.Wrap(err, "redis.Get()")
	}
	return data, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	return errors.Wrap(s.rdb.Set(ctx, s.key(key), data, s.ttl).Err(), "redis.Set()")
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return errors.Wrap(s.rdb.Del(ctx, s.key(key)).Err(), "redis.Del()")
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
