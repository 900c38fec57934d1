package keyval

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	store := NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: s.Addr()}))
	t.Cleanup(func() { store.Close() })
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)

	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestStoreGetSetDelete(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get on missing key: ok=%v err=%v, want absent", ok, err)
	}

	if err := store.Set(ctx, "k", `"v"`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get after Set: ok=%v err=%v", ok, err)
	}
	if value != `"v"` {
		t.Errorf("Get returned %q, want %q", value, `"v"`)
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("key still present after Delete")
	}

	// Deleting an absent key is not an error.
	if err := store.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete on absent key failed: %v", err)
	}
}

func TestReadFallback(t *testing.T) {
	store, s := setupTestStore(t)
	codec := NewCodec(store)
	ctx := context.Background()

	type doc struct {
		ID string `json:"id"`
	}
	fallback := []doc{}

	// Missing key.
	got, err := Read(ctx, codec, KeyDocs, fallback)
	if err != nil {
		t.Fatalf("Read on missing key failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Read on missing key returned %v, want fallback", got)
	}

	// Stored null.
	s.Set(KeyDocs, "null")
	got, err = Read(ctx, codec, KeyDocs, []doc{{ID: "fb"}})
	if err != nil {
		t.Fatalf("Read on null failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "fb" {
		t.Errorf("Read on null returned %v, want fallback", got)
	}

	// Malformed JSON.
	s.Set(KeyDocs, "{not json")
	got, err = Read(ctx, codec, KeyDocs, fallback)
	if err != nil {
		t.Fatalf("Read on malformed value failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Read on malformed value returned %v, want fallback", got)
	}

	// Type mismatch: an object where an array is expected.
	s.Set(KeyDocs, `{"id":"x"}`)
	got, err = Read(ctx, codec, KeyDocs, fallback)
	if err != nil {
		t.Fatalf("Read on mismatched value failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Read on mismatched value returned %v, want fallback", got)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)
	codec := NewCodec(store)
	ctx := context.Background()

	type user struct {
		Username string `json:"username"`
	}
	in := []user{{Username: "ana"}, {Username: "bo"}}

	if err := Write(ctx, codec, KeyUsers, in); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out, err := Read(ctx, codec, KeyUsers, []user{})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(out) != 2 || out[0].Username != "ana" || out[1].Username != "bo" {
		t.Errorf("round trip returned %v, want %v", out, in)
	}
}

func TestSubscribeSkipsOwnWrites(t *testing.T) {
	s := miniredis.RunT(t)
	writerA := NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: s.Addr()}))
	defer writerA.Close()
	writerB := NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: s.Addr()}))
	defer writerB.Close()

	ctx := context.Background()
	changes, cancel, err := writerA.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	// A write from this instance must not come back to it.
	if err := writerA.Set(ctx, KeyDocs, "[]"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	// A write from another instance must.
	if err := writerB.Set(ctx, KeyDocs, "[]"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	select {
	case change := <-changes:
		if change.Key != KeyDocs {
			t.Errorf("change key = %q, want %q", change.Key, KeyDocs)
		}
		if change.Origin != writerB.Origin() {
			t.Errorf("change origin = %q, want writer B (%q)", change.Origin, writerB.Origin())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}

	select {
	case change := <-changes:
		t.Errorf("unexpected extra change event: %+v", change)
	case <-time.After(100 * time.Millisecond):
	}
}
