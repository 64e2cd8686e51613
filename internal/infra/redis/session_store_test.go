package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	clock := clockwork.NewFakeClock()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute, clock)

	_ = store.GetOrCreate("111111")
	if !mr.Exists("live:session:111111") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("live:session:111111"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", ttl)
	}

	clock.Advance(3 * time.Hour)
	evicted := store.EvictIdle(clock.Now(), 2*time.Hour)
	if len(evicted) != 1 || evicted[0] != "111111" {
		t.Fatalf("expected session evicted, got %v", evicted)
	}
	if mr.Exists("live:session:111111") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get("111111"); ok {
		t.Fatalf("expected session gone after eviction")
	}
}

func TestSessionStoreRefreshesMarkerOnLookup(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	clock := clockwork.NewFakeClock()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute, clock)

	_ = store.GetOrCreate("111111")
	clock.Advance(50 * time.Second)
	mr.FastForward(50 * time.Second)
	if _, ok := store.Get("111111"); !ok {
		t.Fatalf("expected session")
	}
	if ttl := mr.TTL("live:session:111111"); ttl != time.Minute {
		t.Fatalf("expected ttl refreshed to 1m, got %v", ttl)
	}
}

func TestSessionStoreDebouncesMarkerRefresh(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	clock := clockwork.NewFakeClock()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute, clock)

	_ = store.GetOrCreate("111111")
	clock.Advance(5 * time.Second)
	mr.FastForward(5 * time.Second)
	for i := 0; i < 10; i++ {
		if _, ok := store.Get("111111"); !ok {
			t.Fatalf("expected session")
		}
	}
	if ttl := mr.TTL("live:session:111111"); ttl != 55*time.Second {
		t.Fatalf("expected refresh skipped within a quarter ttl, got %v", ttl)
	}

	clock.Advance(15 * time.Second)
	mr.FastForward(15 * time.Second)
	_ = store.GetOrCreate("111111")
	if ttl := mr.TTL("live:session:111111"); ttl != time.Minute {
		t.Fatalf("expected ttl refreshed after a quarter ttl, got %v", ttl)
	}
}

func TestSessionStoreServesSessionsWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	mr.Close()

	clock := clockwork.NewFakeClock()
	store := NewSessionStore(client, time.Minute, clock)

	session := store.GetOrCreate("111111")
	clock.Advance(time.Minute)
	got, ok := store.Get("111111")
	if !ok || got != session {
		t.Fatalf("expected the local session despite redis errors")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", store.Len())
	}

	clock.Advance(3 * time.Hour)
	if evicted := store.EvictIdle(clock.Now(), 2*time.Hour); len(evicted) != 1 {
		t.Fatalf("expected eviction to proceed, got %v", evicted)
	}
}
