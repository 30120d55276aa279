// Package legacy reads the flat key-value store that predates the SQLite
// store. Values are raw JSON blobs under well-known keys.
package legacy

import (
	"context"
	"errors"
)

// Well-known keys of the flat store.
const (
	// SyncDataKey holds a JSON array of {time, segmentId} objects.
	SyncDataKey = "tokaido_sync_data"
	// SettingsKey holds the persisted UI preferences blob.
	SettingsKey = "tokaido-app-storage"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("legacy key not found")

// Store is a flat key-value store of raw values.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
