package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient builds a client and checks it with a bounded PING. The
// client is returned even when the ping fails so callers can decide whether
// an unreachable cache is fatal.
func NewRedisClient(ctx context.Context, c RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rdb, rdb.Ping(pingCtx).Err()
}

// RedisGetJSON decodes key into dest. A missing key is (false, nil).
func RedisGetJSON[T any](ctx context.Context, rdb redis.Cmdable, key string, dest *T) (bool, error) {
	raw, err := rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, json.Unmarshal(raw, dest)
}

// RedisFillJSON runs load under WATCH on versionKey and stores its result at
// key only if versionKey was not touched in between. A lost race returns
// redis.TxFailedErr with the loaded value still in place; the caller should
// serve it without caching. load errors are returned unchanged.
func RedisFillJSON(ctx context.Context, rdb redis.UniversalClient, versionKey, key string, ttl time.Duration, load func() (any, error)) error {
	return rdb.Watch(ctx, func(tx *redis.Tx) error {
		v, err := load()
		if err != nil {
			return err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, ttl)
			return nil
		})
		return err
	}, versionKey)
}

// RedisInvalidate bumps versionKey and drops key in one transaction, so any
// RedisFillJSON that started earlier fails its EXEC instead of writing back a
// stale value.
func RedisInvalidate(ctx context.Context, rdb redis.Cmdable, versionKey, key string, ttl time.Duration) error {
	_, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, versionKey)
		if ttl > 0 {
			p.Expire(ctx, versionKey, 2*ttl)
		}
		p.Del(ctx, key)
		return nil
	})
	return err
}
