package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// HashKey is the Redis hash holding pending deltas, one field per code.
const HashKey = "clicks"

// drainScript reads the hash and removes exactly the fields it read. The
// script runs atomically, so a concurrent HINCRBY lands either before (and is
// returned) or after (and survives for the next drain).
var drainScript = redis.NewScript(`
local flat = redis.call('HGETALL', KEYS[1])
for i = 1, #flat, 2 do
  redis.call('HDEL', KEYS[1], flat[i])
end
return flat
`)

type RedisCounter struct {
	client redis.Cmdable
}

func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Increment(ctx context.Context, code string) error {
	if err := c.client.HIncrBy(ctx, HashKey, code, 1).Err(); err != nil {
		return fmt.Errorf("hincrby %s: %w", code, err)
	}
	return nil
}

func (c *RedisCounter) Pending(ctx context.Context, code string) (int64, error) {
	n, err := c.client.HGet(ctx, HashKey, code).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("hget %s: %w", code, err)
	}
	return n, nil
}

func (c *RedisCounter) DrainAll(ctx context.Context) (map[string]int64, error) {
	res, err := drainScript.Run(ctx, c.client, []string{HashKey}).Slice()
	if err != nil {
		return nil, fmt.Errorf("drain clicks: %w", err)
	}

	out := make(map[string]int64, len(res)/2)
	for i := 0; i+1 < len(res); i += 2 {
		field, ok := res[i].(string)
		if !ok {
			return nil, fmt.Errorf("drain clicks: unexpected field type %T", res[i])
		}
		n, err := toInt64(res[i+1])
		if err != nil {
			return nil, fmt.Errorf("drain clicks: field %s: %w", field, err)
		}
		if n != 0 {
			out[field] = n
		}
	}
	return out, nil
}

// Restore adds deltas back after a failed apply.
func (c *RedisCounter) Restore(ctx context.Context, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for code, n := range deltas {
			p.HIncrBy(ctx, HashKey, code, n)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("restore clicks: %w", err)
	}
	return nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case string:
		return strconv.ParseInt(n, 10, 64)
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected value type %T", v)
	}
}
