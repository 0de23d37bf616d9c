package redisstore

import (
	"context"
	"errors"
	"iter"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orderflow/orderflow/internal/store"
)

// scanPageSize is the COUNT hint sent with every SCAN page.
const scanPageSize = 100

// Ping round-trips to the server. It backs readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", "", func(rdb *redis.Client) error {
		return rdb.Ping(ctx).Err()
	})
}

// Get returns the value at key, or store.ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := c.do(ctx, "get", key, func(rdb *redis.Client) error {
		var err error
		val, err = rdb.Get(ctx, key).Result()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return "", store.ErrNotFound
	}
	return val, err
}

// Set stores value at key with an optional ttl.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.do(ctx, "set", key, func(rdb *redis.Client) error {
		return rdb.Set(ctx, key, value, ttl).Err()
	})
}

// SetNX stores value only if key is absent.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	var ok bool
	err := c.do(ctx, "setnx", key, func(rdb *redis.Client) error {
		var err error
		ok, err = rdb.SetNX(ctx, key, value, ttl).Result()
		return err
	})
	return ok, err
}

// Delete removes keys and returns how many existed.
func (c *Client) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var n int64
	err := c.do(ctx, "delete", keys[0], func(rdb *redis.Client) error {
		var err error
		n, err = rdb.Del(ctx, keys...).Result()
		return err
	})
	return n, err
}

// Exists returns how many of keys exist.
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var n int64
	err := c.do(ctx, "exists", keys[0], func(rdb *redis.Client) error {
		var err error
		n, err = rdb.Exists(ctx, keys...).Result()
		return err
	})
	return n, err
}

// HGet returns one hash field, or store.ErrNotFound.
func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	var val string
	err := c.do(ctx, "hget", key, func(rdb *redis.Client) error {
		var err error
		val, err = rdb.HGet(ctx, key, field).Result()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return "", store.ErrNotFound
	}
	return val, err
}

// HSet sets field/value pairs on a hash.
func (c *Client) HSet(ctx context.Context, key string, values ...any) (int64, error) {
	var n int64
	err := c.do(ctx, "hset", key, func(rdb *redis.Client) error {
		var err error
		n, err = rdb.HSet(ctx, key, values...).Result()
		return err
	})
	return n, err
}

// HGetAll returns every field of a hash. A missing hash yields an empty map.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	var fields map[string]string
	err := c.do(ctx, "hgetall", key, func(rdb *redis.Client) error {
		var err error
		fields, err = rdb.HGetAll(ctx, key).Result()
		return err
	})
	return fields, err
}

// Keys returns every key matching pattern in a single KEYS call.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := c.do(ctx, "keys", pattern, func(rdb *redis.Client) error {
		var err error
		keys, err = rdb.Keys(ctx, pattern).Result()
		return err
	})
	return keys, err
}

// Scan lazily yields keys matching pattern, one SCAN page per store call.
// Keys SCAN returns more than once are yielded once per range.
func (c *Client) Scan(ctx context.Context, pattern string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		seen := make(map[string]struct{})
		var cursor uint64
		for {
			var page []string
			var next uint64
			err := c.do(ctx, "scan", pattern, func(rdb *redis.Client) error {
				var err error
				page, next, err = rdb.Scan(ctx, cursor, pattern, scanPageSize).Result()
				return err
			})
			if err != nil {
				yield("", err)
				return
			}
			for _, key := range page {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				if !yield(key, nil) {
					return
				}
			}
			if next == 0 {
				return
			}
			cursor = next
		}
	}
}

// LPush prepends values to a list.
func (c *Client) LPush(ctx context.Context, key string, values ...any) (int64, error) {
	var n int64
	err := c.do(ctx, "lpush", key, func(rdb *redis.Client) error {
		var err error
		n, err = rdb.LPush(ctx, key, values...).Result()
		return err
	})
	return n, err
}

// RPush appends values to a list.
func (c *Client) RPush(ctx context.Context, key string, values ...any) (int64, error) {
	var n int64
	err := c.do(ctx, "rpush", key, func(rdb *redis.Client) error {
		var err error
		n, err = rdb.RPush(ctx, key, values...).Result()
		return err
	})
	return n, err
}

// LLen returns a list's length.
func (c *Client) LLen(ctx context.Context, key string) (int64, error) {
	var n int64
	err := c.do(ctx, "llen", key, func(rdb *redis.Client) error {
		var err error
		n, err = rdb.LLen(ctx, key).Result()
		return err
	})
	return n, err
}

// LRange returns list elements between start and stop inclusive.
func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	var vals []string
	err := c.do(ctx, "lrange", key, func(rdb *redis.Client) error {
		var err error
		vals, err = rdb.LRange(ctx, key, start, stop).Result()
		return err
	})
	return vals, err
}

// LRem removes count occurrences of value from a list.
func (c *Client) LRem(ctx context.Context, key string, count int64, value string) (int64, error) {
	var n int64
	err := c.do(ctx, "lrem", key, func(rdb *redis.Client) error {
		var err error
		n, err = rdb.LRem(ctx, key, count, value).Result()
		return err
	})
	return n, err
}

// BLMove pops the tail of src onto the head of dst, waiting up to timeout.
// Redis only honours whole seconds, so timeouts under a second are raised to one.
func (c *Client) BLMove(ctx context.Context, src, dst string, timeout time.Duration) (string, error) {
	if timeout < time.Second {
		timeout = time.Second
	}
	var val string
	err := c.do(ctx, "blmove", src, func(rdb *redis.Client) error {
		var err error
		val, err = rdb.BLMove(ctx, src, dst, "RIGHT", "LEFT", timeout).Result()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return "", store.ErrNotFound
	}
	return val, err
}

// ZAdd adds member to a sorted set.
func (c *Client) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.do(ctx, "zadd", key, func(rdb *redis.Client) error {
		return rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
	})
}

// ZRangeByScore returns up to limit members scored at most max.
func (c *Client) ZRangeByScore(ctx context.Context, key string, max float64, limit int64) ([]string, error) {
	var members []string
	err := c.do(ctx, "zrangebyscore", key, func(rdb *redis.Client) error {
		var err error
		members, err = rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   strconv.FormatFloat(max, 'f', -1, 64),
			Count: limit,
		}).Result()
		return err
	})
	return members, err
}

// ZRem removes members from a sorted set.
func (c *Client) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	var n int64
	err := c.do(ctx, "zrem", key, func(rdb *redis.Client) error {
		var err error
		n, err = rdb.ZRem(ctx, key, args...).Result()
		return err
	})
	return n, err
}

// RunScript evaluates a Lua script atomically on the server, loading it by
// SHA first and falling back to EVAL.
func (c *Client) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...any) (any, error) {
	var res any
	key := ""
	if len(keys) > 0 {
		key = keys[0]
	}
	err := c.do(ctx, "script", key, func(rdb *redis.Client) error {
		var err error
		res, err = script.Run(ctx, rdb, keys, args...).Result()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return res, err
}

// Eval implements store.KV.
func (c *Client) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	return c.RunScript(ctx, redis.NewScript(script), keys, args...)
}

var _ store.KV = (*Client)(nil)
