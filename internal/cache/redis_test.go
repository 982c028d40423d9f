package cache

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

func testRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}

	r, err := NewRedis(addr, os.Getenv("REDIS_PASSWORD"), db, "test:"+uuid.NewString()+":")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestRedisStoreIntegration(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()

	if _, err := r.Get(ctx, "missing"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get missing = %v", err)
	}

	ok, err := r.SetNX(ctx, "lock", "1", 2*time.Second)
	if err != nil || !ok {
		t.Fatalf("SetNX = %v, %v", ok, err)
	}
	ok, _ = r.SetNX(ctx, "lock", "1", 2*time.Second)
	if ok {
		t.Fatal("second SetNX should fail")
	}

	for want := int64(1); want <= 2; want++ {
		n, err := r.Incr(ctx, "ctr", 2*time.Second)
		if err != nil || n != want {
			t.Fatalf("Incr = %d, %v", n, err)
		}
	}

	if err := r.Delete(ctx, "lock"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Get(ctx, "lock"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get after delete = %v", err)
	}
}

// refuseExpire fails every EXPIRE before it reaches the server.
type refuseExpire struct{}

func (refuseExpire) DialHook(next redis.DialHook) redis.DialHook { return next }

func (refuseExpire) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "expire" {
			return errors.New("expire refused")
		}
		return next(ctx, cmd)
	}
}

func (refuseExpire) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisIncr_ExpireFailureLeavesNoCounter(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()
	r.client.AddHook(refuseExpire{})

	if _, err := r.Incr(ctx, "ctr", time.Minute); err == nil {
		t.Fatal("Incr should report the failed EXPIRE")
	}
	if _, err := r.Get(ctx, "ctr"); !errors.Is(err, ErrMiss) {
		t.Fatalf("counter without TTL left behind: %v", err)
	}
}
