// Package migrate moves data out of the legacy flat key-value store into the
// structured SQLite store.
package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/damgoweb/tokaido-orai/internal/db"
	"github.com/damgoweb/tokaido-orai/internal/legacy"
	"github.com/damgoweb/tokaido-orai/internal/syncpoint"
)

// Target is the structured store receiving migrated data.
type Target interface {
	Count(ctx context.Context) (int, error)
	ReplaceAll(ctx context.Context, points []syncpoint.Point) error
	Setting(ctx context.Context, key string) (json.RawMessage, bool, error)
	SaveSetting(ctx context.Context, key string, value json.RawMessage) error
}

// Result describes what a migration run did.
type Result struct {
	Migrated      bool
	Points        int
	SettingsMoved bool
	SkipReason    string
}

// Skip reasons.
const (
	SkipTargetHasData = "structured store already has sync points"
	SkipNoLegacyData  = "no legacy sync data"
)

// LegacyIfPresent migrates the legacy sync-data blob under key into target,
// then deletes the blob. It does nothing when target already holds sync
// points, so stale legacy data never overwrites newer data, and running it
// again after a successful migration is a no-op.
//
// A malformed blob fails with a *syncpoint.ValidationError; nothing is
// written and the blob is kept for inspection.
func LegacyIfPresent(ctx context.Context, target Target, src legacy.Store, key string) (Result, error) {
	n, err := target.Count(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("check structured store: %w", err)
	}
	if n > 0 {
		return Result{SkipReason: SkipTargetHasData}, nil
	}

	blob, err := src.Get(ctx, key)
	if err != nil {
		if errors.Is(err, legacy.ErrNotFound) {
			return Result{SkipReason: SkipNoLegacyData}, nil
		}
		return Result{}, fmt.Errorf("read legacy sync data: %w", err)
	}

	points, err := syncpoint.Decode(blob)
	if err != nil {
		return Result{}, fmt.Errorf("parse legacy sync data: %w", err)
	}

	if err := target.ReplaceAll(ctx, syncpoint.Sort(points)); err != nil {
		return Result{}, fmt.Errorf("write migrated sync data: %w", err)
	}
	res := Result{Migrated: true, Points: len(points)}

	if err := src.Delete(ctx, key); err != nil {
		return res, fmt.Errorf("delete legacy sync data: %w", err)
	}

	moved, err := moveSettings(ctx, target, src)
	res.SettingsMoved = moved
	if err != nil {
		return res, err
	}
	return res, nil
}

// moveSettings copies the legacy UI preferences blob into the settings
// table unless one is already there. An unparsable blob is left alone.
func moveSettings(ctx context.Context, target Target, src legacy.Store) (bool, error) {
	if _, ok, err := target.Setting(ctx, db.AppStateKey); err != nil || ok {
		return false, err
	}
	blob, err := src.Get(ctx, legacy.SettingsKey)
	if err != nil {
		if errors.Is(err, legacy.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("read legacy settings: %w", err)
	}
	if !json.Valid(blob) {
		return false, nil
	}
	if err := target.SaveSetting(ctx, db.AppStateKey, blob); err != nil {
		return false, fmt.Errorf("write migrated settings: %w", err)
	}
	if err := src.Delete(ctx, legacy.SettingsKey); err != nil {
		return true, fmt.Errorf("delete legacy settings: %w", err)
	}
	return true, nil
}
