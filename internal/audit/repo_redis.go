package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRepo appends JSON-encoded events to a redis list.
type RedisRepo struct {
	rdb redis.Cmdable
	key string
}

func NewRedisRepo(rdb redis.Cmdable, namespace string) *RedisRepo {
	if namespace == "" {
		namespace = "console"
	}
	return &RedisRepo{rdb: rdb, key: namespace + ":audit"}
}

func (r *RedisRepo) Append(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: encode: %w", err)
	}
	if err := r.rdb.RPush(ctx, r.key, b).Err(); err != nil {
		return fmt.Errorf("audit: rpush: %w", err)
	}
	return nil
}

func (r *RedisRepo) List(ctx context.Context, f Filter) ([]Event, error) {
	raw, err := r.rdb.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("audit: lrange: %w", err)
	}
	out := make([]Event, 0, len(raw))
	for _, s := range raw {
		var e Event
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, fmt.Errorf("audit: decode: %w", err)
		}
		if f.match(e) {
			out = append(out, e)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}
