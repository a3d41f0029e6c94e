package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tenant-console/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	writerLeaseTTL = 5 * time.Second
	// A held lease always lapses within its TTL, so waiting longer than that is pointless.
	writerLeaseWait = writerLeaseTTL + time.Second
)

// RedisStore keeps credentials under <namespace>:<key>.
// Set runs under a writer lease so two console processes sharing a namespace cannot interleave
// their writes. Delete never waits for the lease: a single DEL is atomic, and clearing credentials
// must not fail because another process is writing.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
	owner     string
	leaseWait time.Duration
}

func NewRedisStore(rdb *redis.Client, namespace string) *RedisStore {
	if namespace == "" {
		namespace = "console"
	}
	return &RedisStore{rdb: rdb, namespace: namespace, owner: uuid.NewString(), leaseWait: writerLeaseWait}
}

func (s *RedisStore) key(k string) string { return s.namespace + ":" + k }

func (s *RedisStore) leaseKey() string { return s.namespace + ":writer" }

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, values map[string]string) error {
	return s.withLease(ctx, func() error {
		_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for k, v := range values {
				p.Set(ctx, s.key(k), v, 0)
			}
			return nil
		})
		return err
	})
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.key(k))
	}
	if err := s.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// withLease waits for the writer lease, backing off between attempts, then runs fn.
// It gives up when ctx ends or leaseWait passes.
func (s *RedisStore) withLease(ctx context.Context, fn func() error) error {
	deadline := time.Now().Add(s.leaseWait)
	backoff := 10 * time.Millisecond
	for {
		err := utils.AcquireWriterLease(ctx, s.rdb, s.leaseKey(), s.owner, writerLeaseTTL)
		if err == nil {
			break
		}
		if !errors.Is(err, utils.ErrLeaseHeld) || time.Now().Add(backoff).After(deadline) {
			return fmt.Errorf("credential store: %w", err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("credential store: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 500*time.Millisecond)
	}
	defer func() {
		_ = utils.ReleaseWriterLease(context.WithoutCancel(ctx), s.rdb, s.leaseKey(), s.owner)
	}()
	return fn()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
