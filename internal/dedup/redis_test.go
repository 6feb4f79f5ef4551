package dedup

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRedis_Seen(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	r, err := NewRedis(context.Background(), addr, time.Minute, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer r.Close()

	key := "test|" + time.Now().Format(time.RFC3339Nano)
	if r.Seen(key) {
		t.Error("expected first occurrence to be new")
	}
	if !r.Seen(key) {
		t.Error("expected second occurrence to be seen")
	}
}

func TestRedis_UnreachableIsPermissive(t *testing.T) {
	if _, err := NewRedis(context.Background(), "127.0.0.1:1", time.Minute, zap.NewNop().Sugar()); err == nil {
		t.Fatal("expected connection error")
	}
}
