// Package db provides the SQLite-backed structured store for sync points,
// recording metadata and UI settings.
package db

import "time"

// Recording is the metadata of a narration recording. Audio bytes are kept
// outside the database; Path points at them when known.
type Recording struct {
	ID        int64
	Name      string
	Path      string
	Duration  float64 // seconds
	Size      int64   // bytes
	CreatedAt time.Time
}

// AppStateKey is the settings key holding the opaque UI preferences blob.
const AppStateKey = "appState"
