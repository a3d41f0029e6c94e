package audit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisRepo_AppendAndList(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := NewRedisRepo(rdb, "ns")
	seed(t, repo)

	got, err := repo.List(context.Background(), Filter{UserID: "u-2"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Type != EventSessionEstablished {
		t.Fatalf("unexpected events: %+v", got)
	}

	n, err := rdb.LLen(context.Background(), "ns:audit").Result()
	if err != nil || n != 6 {
		t.Fatalf("expected 6 entries under ns:audit, got %d (%v)", n, err)
	}
}
