// Package backup builds and restores the portable settings document: the
// sync points, recording metadata and UI preferences, without audio bytes.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/damgoweb/tokaido-orai/internal/db"
	"github.com/damgoweb/tokaido-orai/internal/syncpoint"
)

// Document format identifiers.
const (
	Version          = "2.0"
	TypeSettingsOnly = "settings_only"
)

// DefaultSettings is exported when no UI preferences have been stored.
var DefaultSettings = json.RawMessage(`{"state":{"displayMode":"horizontal","showRuby":true,"fontSize":"medium"},"version":0}`)

// Document is the export file format.
type Document struct {
	Version            string            `json:"version"`
	Type               string            `json:"type"`
	Date               string            `json:"date"`
	RecordingsMetadata []RecordingMeta   `json:"recordingsMetadata"`
	SyncData           []syncpoint.Point `json:"syncData"`
	Settings           json.RawMessage   `json:"settings,omitempty"`
	RecordingsCount    int               `json:"recordingsCount"`
	SyncPointsCount    int               `json:"syncPointsCount"`
}

// RecordingMeta describes a recording without its audio.
type RecordingMeta struct {
	Name      string    `json:"name"`
	Duration  float64   `json:"duration"`
	CreatedAt time.Time `json:"createdAt"`
	Size      int64     `json:"size"`
}

// Source is what Export reads from.
type Source interface {
	All(ctx context.Context) ([]syncpoint.Point, error)
	Recordings(ctx context.Context) ([]db.Recording, error)
	Setting(ctx context.Context, key string) (json.RawMessage, bool, error)
}

// Destination is what Import writes to. ReplaceAllWithSettings must replace
// the sync points and, when settings is non-empty, the UI preferences in a
// single transaction.
type Destination interface {
	ReplaceAllWithSettings(ctx context.Context, points []syncpoint.Point, settings json.RawMessage) error
}

// Export snapshots the store into a Document dated now.
func Export(ctx context.Context, src Source, now time.Time) (*Document, error) {
	points, err := src.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sync points: %w", err)
	}
	recs, err := src.Recordings(ctx)
	if err != nil {
		return nil, fmt.Errorf("read recordings: %w", err)
	}
	settings, ok, err := src.Setting(ctx, db.AppStateKey)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if !ok {
		settings = DefaultSettings
	}

	meta := make([]RecordingMeta, 0, len(recs))
	for _, r := range recs {
		meta = append(meta, RecordingMeta{
			Name:      r.Name,
			Duration:  r.Duration,
			CreatedAt: r.CreatedAt.UTC(),
			Size:      r.Size,
		})
	}

	points = syncpoint.Sort(points)
	return &Document{
		Version:            Version,
		Type:               TypeSettingsOnly,
		Date:               now.UTC().Format(time.RFC3339Nano),
		RecordingsMetadata: meta,
		SyncData:           points,
		Settings:           settings,
		RecordingsCount:    len(meta),
		SyncPointsCount:    len(points),
	}, nil
}

// rawDocument mirrors Document with every field optional so that unknown
// or missing fields never fail decoding.
type rawDocument struct {
	Version            string            `json:"version"`
	Type               string            `json:"type"`
	Date               string            `json:"date"`
	RecordingsMetadata []json.RawMessage `json:"recordingsMetadata"`
	SyncData           json.RawMessage   `json:"syncData"`
	Settings           json.RawMessage   `json:"settings"`
}

// Parse decodes an export document. syncData must be a valid array of sync
// points; everything else is optional and malformed optional entries are
// dropped. Failures are *syncpoint.ValidationError.
func Parse(data []byte) (*Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &syncpoint.ValidationError{Reason: "document is not a JSON object: " + err.Error()}
	}

	points, err := syncpoint.Decode(raw.SyncData)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Version:         raw.Version,
		Type:            raw.Type,
		Date:            raw.Date,
		SyncData:        points,
		SyncPointsCount: len(points),
	}
	for _, m := range raw.RecordingsMetadata {
		var meta RecordingMeta
		if err := json.Unmarshal(m, &meta); err != nil {
			continue
		}
		doc.RecordingsMetadata = append(doc.RecordingsMetadata, meta)
	}
	doc.RecordingsCount = len(doc.RecordingsMetadata)

	if s := bytes.TrimSpace(raw.Settings); len(s) > 0 && !bytes.Equal(s, []byte("null")) {
		doc.Settings = raw.Settings
	}
	return doc, nil
}

// Import parses data and replaces the stored sync points with the
// document's. A settings blob, when present, replaces the stored UI
// preferences in the same write. Malformed input or a failed write leaves
// the store untouched.
func Import(ctx context.Context, dst Destination, data []byte) (*Document, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := dst.ReplaceAllWithSettings(ctx, syncpoint.Sort(doc.SyncData), doc.Settings); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	return doc, nil
}

// FileName returns the export file name for a date.
func FileName(t time.Time) string {
	return fmt.Sprintf("tokaido_settings_%s.json", t.Format("2006-01-02"))
}

// Marshal encodes doc as indented JSON.
func Marshal(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}

// WriteFile writes doc into dir under FileName(now) and returns the path.
// The file is written to a temp name and renamed into place.
func WriteFile(dir string, doc *Document, now time.Time) (string, error) {
	data, err := Marshal(doc)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(dir, FileName(now))
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename temp file: %w", err)
	}
	return path, nil
}

// ImportFile reads and imports the document at path.
func ImportFile(ctx context.Context, dst Destination, path string) (*Document, error) {
	// #nosec G304 - path chosen by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	return Import(ctx, dst, data)
}
