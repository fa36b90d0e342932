package cache

import (
	"context"
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := NewInMemoryCache(time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "plan:abc", "cached plan"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := c.Get(ctx, "plan:abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "cached plan" {
		t.Errorf("Get = %v, want cached plan", value)
	}
}

func TestGetMiss(t *testing.T) {
	c := NewInMemoryCache(time.Minute)
	if _, err := c.Get(context.Background(), "absent"); err == nil {
		t.Error("Get on a missing key succeeded, want error")
	}
}

func TestExpiredEntryIsGone(t *testing.T) {
	c := NewInMemoryCache(10 * time.Millisecond)
	ctx := context.Background()

	if err := c.Set(ctx, "key", "value"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)

	if _, err := c.Get(ctx, "key"); err == nil {
		t.Error("Get returned an expired entry")
	}
	if got := c.Len(); got != 0 {
		t.Errorf("Len after expired read = %d, want 0", got)
	}
}

func TestDelete(t *testing.T) {
	c := NewInMemoryCache(time.Minute)
	ctx := context.Background()

	c.Set(ctx, "key", "value")
	c.Delete("key")
	if _, err := c.Get(ctx, "key"); err == nil {
		t.Error("Get returned a deleted entry")
	}
	c.Delete("never-existed")
}

func TestCancelledContext(t *testing.T) {
	c := NewInMemoryCache(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Set(ctx, "key", "value"); err == nil {
		t.Error("Set with cancelled context succeeded")
	}
	if _, err := c.Get(ctx, "key"); err == nil {
		t.Error("Get with cancelled context succeeded")
	}
}
