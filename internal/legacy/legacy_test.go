package legacy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, s
}

func redisClient(t *testing.T, addr string) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url"); err == nil {
		t.Error("expected error for invalid url")
	}
}

func TestRedisStoreGetSetDelete(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, SyncDataKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}

	blob := []byte(`[{"time":0,"segmentId":"seg_001"}]`)
	if err := store.Set(ctx, SyncDataKey, blob); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Stored as a plain string key, as the old app wrote it.
	raw, err := mr.Get(SyncDataKey)
	if err != nil {
		t.Fatalf("miniredis Get: %v", err)
	}
	if raw != string(blob) {
		t.Errorf("raw value = %q", raw)
	}

	got, err := store.Get(ctx, SyncDataKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(blob) {
		t.Errorf("Get = %s, want %s", got, blob)
	}

	if err := store.Delete(ctx, SyncDataKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists(SyncDataKey) {
		t.Error("key should be gone after Delete")
	}
	if err := store.Delete(ctx, SyncDataKey); err != nil {
		t.Errorf("Delete missing key: %v", err)
	}
}

func TestRedisStorePrefix(t *testing.T) {
	_, mr := setupTestRedis(t)
	client := redisClient(t, mr.Addr())
	store := NewRedisStoreWithClient(client, "user:42:")
	ctx := context.Background()

	if err := store.Set(ctx, SettingsKey, []byte(`{}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("user:42:" + SettingsKey) {
		t.Error("prefixed key should exist")
	}
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localStorage.json")
	store := NewFileStore(path)
	ctx := context.Background()

	if _, err := store.Get(ctx, SyncDataKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on missing file = %v, want ErrNotFound", err)
	}

	if err := store.Set(ctx, SyncDataKey, []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, SettingsKey, []byte(`{"state":{}}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened := NewFileStore(path)
	got, err := reopened.Get(ctx, SettingsKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"state":{}}` {
		t.Errorf("Get = %s", got)
	}

	if err := reopened.Delete(ctx, SyncDataKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := reopened.Get(ctx, SyncDataKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not be left behind")
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localStorage.json")
	os.WriteFile(path, []byte("{broken"), 0o600)

	if _, err := NewFileStore(path).Get(context.Background(), SyncDataKey); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Get on corrupt file = %v, want parse error", err)
	}
}
