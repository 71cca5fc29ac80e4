package store

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/recserve/core"
)

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	if _, err := s.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Fatalf("期望 not found，实际 %v", err)
	}

	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set 失败: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("期望 v，实际 %s", got)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete 失败: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !core.IsStoreNotFound(err) {
		t.Errorf("删除后期望 not found，实际 %v", err)
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(time.Hour)
	defer s.Close()

	_ = s.Set(ctx, "expired", []byte("x"), 1)
	s.mu.Lock()
	s.data["expired"].expire = time.Now().Add(-time.Second)
	s.mu.Unlock()

	if _, err := s.Get(ctx, "expired"); !core.IsStoreNotFound(err) {
		t.Errorf("过期 key 期望 not found，实际 %v", err)
	}

	_ = s.Set(ctx, "forever", []byte("y"), 0)
	if _, err := s.Get(ctx, "forever"); err != nil {
		t.Errorf("ttl=0 不应过期: %v", err)
	}
}

func TestMemoryStore_CloseTwice(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
