package store

import (
	"context"
	"os"
	"testing"

	"github.com/rushteam/recserve/core"
)

// 需要真实 Redis：RECSERVE_TEST_REDIS=localhost:6379 go test ./store/...
func TestRedisStore_GetSet(t *testing.T) {
	addr := os.Getenv("RECSERVE_TEST_REDIS")
	if addr == "" {
		t.Skip("未设置 RECSERVE_TEST_REDIS，跳过 Redis 测试")
	}

	ctx := context.Background()
	s, err := NewRedisStore(ctx, addr, 0)
	if err != nil {
		t.Fatalf("连接 Redis 失败: %v", err)
	}
	defer s.Close()

	key := "recserve:test:key"
	defer s.Delete(ctx, key)

	if _, err := s.Get(ctx, key); !core.IsStoreNotFound(err) {
		t.Fatalf("期望 not found，实际 %v", err)
	}
	if err := s.Set(ctx, key, []byte("v"), 10); err != nil {
		t.Fatalf("Set 失败: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get 结果不符: %q", got)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete 失败: %v", err)
	}
	if _, err := s.Get(ctx, key); !core.IsStoreNotFound(err) {
		t.Errorf("Delete 后期望 not found，实际 %v", err)
	}
}
