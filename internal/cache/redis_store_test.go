package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisTier(t *testing.T, ttl time.Duration) (*RedisTier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	tier := NewRedisTierWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ttl)
	t.Cleanup(func() { tier.Close() })
	return tier, mr
}

func TestRedisTierRoundTrip(t *testing.T) {
	tier, mr := newTestRedisTier(t, time.Hour)
	ctx := context.Background()

	if err := tier.Ping(ctx); err != nil {
		t.Fatalf("ping error: %v", err)
	}
	if _, err := tier.Get(ctx, "k"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := tier.Set(ctx, "k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("set error: %v", err)
	}
	data, err := tier.Get(ctx, "k")
	if err != nil || string(data) != `{"a":1}` {
		t.Fatalf("unexpected value %q %v", data, err)
	}
	if ttl := mr.TTL("k"); ttl != time.Hour {
		t.Fatalf("expected ttl to be applied, got %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := tier.Get(ctx, "k"); err != ErrNotFound {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestRedisTierDeletePatternAndClear(t *testing.T) {
	tier, mr := newTestRedisTier(t, 0)
	ctx := context.Background()
	for i, key := range []string{"posts_1", "posts_2", "tags_1", "page_block_x"} {
		if err := tier.Set(ctx, key, []byte{byte('0' + i)}); err != nil {
			t.Fatalf("set error: %v", err)
		}
	}

	n, err := tier.DeletePattern(ctx, PatternPosts)
	if err != nil {
		t.Fatalf("delete pattern error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deletions, got %d", n)
	}
	if !mr.Exists("tags_1") {
		t.Fatalf("unrelated key should survive")
	}

	if err := tier.Delete(ctx, "tags_1"); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if err := tier.Clear(ctx); err != nil {
		t.Fatalf("clear error: %v", err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected empty db, got %v", keys)
	}
}

func TestNewRedisTierRejectsBadURL(t *testing.T) {
	if _, err := NewRedisTier("http://not-redis", time.Minute); err == nil {
		t.Fatalf("expected parse error")
	}
}
