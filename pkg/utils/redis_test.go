package utils

import (
	"context"
	"testing"
	"time"
)

func TestMarkOnceScriptInitialized(t *testing.T) {
	if markOnceScript == nil {
		t.Fatalf("expected script to be initialized")
	}
}

func TestMarkOnce_RejectsInvalidArgs(t *testing.T) {
	ctx := context.Background()
	if _, err := MarkOnce(ctx, nil, "k", "m", time.Minute); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}
