package utils

import (
	"context"
	"testing"
	"time"
)

func TestRedisConfigDefaults(t *testing.T) {
	got := RedisConfig{Addr: "localhost:6379"}.withDefaults()

	if got.DialTimeout != 3*time.Second || got.ReadTimeout != 2*time.Second {
		t.Fatalf("timeout defaults: %+v", got)
	}
	if got.PoolSize != 20 {
		t.Fatalf("pool size default: %d", got.PoolSize)
	}
}

func TestAcquireConnectionSlotValidatesArgs(t *testing.T) {
	ctx := context.Background()

	if _, err := AcquireConnectionSlot(ctx, nil, "k", 1, time.Minute); err == nil {
		t.Fatal("nil client should error")
	}
	if err := ReleaseConnectionSlot(ctx, nil, "k"); err == nil {
		t.Fatal("nil client should error")
	}
}

func TestConnectionSlotScriptsCompile(t *testing.T) {
	if connSlotAcquireScript == nil || connSlotReleaseScript == nil {
		t.Fatal("expected scripts to be initialized")
	}
}
