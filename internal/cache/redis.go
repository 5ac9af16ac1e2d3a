package cache

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"errors"        // Error matching
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// Redis stores JSON-encoded values under a key prefix
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis wraps a Redis client; every key is namespaced with prefix
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

// ErrStale is returned by Set when the key was invalidated after the
// generation passed to it was read
var ErrStale = errors.New("cache: entry invalidated during read")

func (c *Redis) genKey(key string) string {
	return c.prefix + "gen:" + key
}

// Get retrieves a value from Redis and unmarshals it into dest. The key's
// current generation is returned on hits and misses alike.
func (c *Redis) Get(ctx context.Context, key string, dest any) (bool, int64, error) {
	var genCmd, valCmd *redis.StringCmd
	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		genCmd = p.Get(ctx, c.genKey(key))
		valCmd = p.Get(ctx, c.prefix+key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, err // Connection or server error
	}

	gen, err := genCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, err
	}
	val, err := valCmd.Bytes() // Get value from Redis
	if errors.Is(err, redis.Nil) {
		return false, gen, nil // Key does not exist
	} else if err != nil {
		return false, 0, err // Other Redis error
	}
	return true, gen, json.Unmarshal(val, dest) // Unmarshal JSON into dest
}

// Set stores a value in Redis with a specified TTL, but only while the key's
// generation still equals gen. Otherwise it returns ErrStale.
func (c *Redis) Set(ctx context.Context, key string, gen int64, value any, ttl time.Duration) error {
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err
	}
	genKey := c.genKey(key)
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, c.prefix+key, b, ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStale // Generation bumped between WATCH and EXEC
	}
	return err
}

// Delete removes keys from Redis and bumps their generations so that
// in-flight reads cannot store what they loaded before the delete
func (c *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Incr(ctx, c.genKey(k))
			p.Del(ctx, c.prefix+k)
		}
		return nil
	})
	return err
}

// Ping checks the Redis connection
func (c *Redis) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
