package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/damgoweb/tokaido-orai/internal/syncpoint"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store is the structured sync-point store. Every multi-row write runs in
// a single transaction, so readers never see a half-replaced list.
type Store struct {
	db *sql.DB
}

const schema = `
	CREATE TABLE IF NOT EXISTS sync_points (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		time REAL NOT NULL CHECK (time >= 0),
		segmentId TEXT NOT NULL CHECK (segmentId <> '')
	);
	CREATE INDEX IF NOT EXISTS idx_sync_points_time ON sync_points(time);
	CREATE INDEX IF NOT EXISTS idx_sync_points_segment ON sync_points(segmentId);

	CREATE TABLE IF NOT EXISTS recordings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		path TEXT NOT NULL DEFAULT '',
		duration REAL NOT NULL DEFAULT 0,
		size INTEGER NOT NULL DEFAULT 0,
		createdAt REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_recordings_created ON recordings(createdAt);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
`

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "tokaido", "tokaido.sqlite")
}

// Open opens (creating if needed) the database with WAL and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema creates tables and indexes. Safe to call repeatedly.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceAll discards the stored sync points and stores points in their
// place. Either the whole list is replaced or, on error, the previous list
// is left untouched.
func (s *Store) ReplaceAll(ctx context.Context, points []syncpoint.Point) error {
	if err := checkTimes(points); err != nil {
		return err
	}
	return s.inTx(ctx, "replace sync points", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_points`); err != nil {
			return fmt.Errorf("clear sync points: %w", err)
		}
		return insertPoints(ctx, tx, points)
	})
}

// checkTimes rejects negative or non-finite times before any write starts.
func checkTimes(points []syncpoint.Point) error {
	for i, p := range points {
		if verr := syncpoint.CheckTime(p.Time); verr != nil {
			verr.Field = fmt.Sprintf("points[%d].time", i)
			return verr
		}
	}
	return nil
}

func insertPoints(ctx context.Context, tx *sql.Tx, points []syncpoint.Point) error {
	if len(points) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sync_points (time, segmentId) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range points {
		if _, err := stmt.ExecContext(ctx, p.Time, p.SegmentID); err != nil {
			return fmt.Errorf("insert sync point %d: %w", i, err)
		}
	}
	return nil
}

// All returns every stored sync point ordered by time. Points with equal
// times keep their insertion order.
func (s *Store) All(ctx context.Context) ([]syncpoint.Point, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, segmentId
		FROM sync_points
		ORDER BY time ASC, id ASC
	`)
	if err != nil {
		return nil, persistErr("query sync points", err)
	}
	defer rows.Close()

	points := []syncpoint.Point{}
	for rows.Next() {
		var p syncpoint.Point
		if err := rows.Scan(&p.Time, &p.SegmentID); err != nil {
			return nil, persistErr("scan sync point", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("query sync points", err)
	}
	return points, nil
}

// UpsertOne moves the point for p.SegmentID to p.Time, or appends p when the
// segment has no point yet. When several points share the segment only the
// earliest stored one is moved.
func (s *Store) UpsertOne(ctx context.Context, p syncpoint.Point) error {
	if verr := syncpoint.CheckTime(p.Time); verr != nil {
		return verr
	}
	return s.inTx(ctx, "upsert sync point", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE sync_points SET time = ?
			WHERE id = (SELECT MIN(id) FROM sync_points WHERE segmentId = ?)
		`, p.Time, p.SegmentID)
		if err != nil {
			return fmt.Errorf("update sync point: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update sync point: %w", err)
		}
		if n > 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO sync_points (time, segmentId) VALUES (?, ?)`,
			p.Time, p.SegmentID); err != nil {
			return fmt.Errorf("insert sync point: %w", err)
		}
		return nil
	})
}

// Count returns the number of stored sync points.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_points`).Scan(&n); err != nil {
		return 0, persistErr("count sync points", err)
	}
	return n, nil
}

// Clear removes every sync point.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_points`); err != nil {
		return persistErr("clear sync points", err)
	}
	return nil
}

// SaveRecording stores recording metadata and returns its ID.
func (s *Store) SaveRecording(ctx context.Context, r Recording) (int64, error) {
	var id int64
	err := s.inTx(ctx, "save recording", func(tx *sql.Tx) error {
		var err error
		id, err = insertRecording(ctx, tx, r)
		return err
	})
	return id, err
}

func insertRecording(ctx context.Context, tx *sql.Tx, r Recording) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO recordings (name, path, duration, size, createdAt)
		VALUES (?, ?, ?, ?, ?)
	`, r.Name, r.Path, r.Duration, r.Size, unixFromTime(r.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert recording: %w", err)
	}
	return res.LastInsertId()
}

// Recordings returns all recording metadata, oldest first.
func (s *Store) Recordings(ctx context.Context) ([]Recording, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, path, duration, size, createdAt
		FROM recordings
		ORDER BY createdAt ASC, id ASC
	`)
	if err != nil {
		return nil, persistErr("query recordings", err)
	}
	defer rows.Close()

	var recs []Recording
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("query recordings", err)
	}
	return recs, nil
}

// LatestRecording returns the most recently created recording, if any.
func (s *Store) LatestRecording(ctx context.Context) (*Recording, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, path, duration, size, createdAt
		FROM recordings
		ORDER BY createdAt DESC, id DESC
		LIMIT 1
	`)
	r, err := scanRecording(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// DeleteRecording removes recording metadata by ID.
func (s *Store) DeleteRecording(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id); err != nil {
		return persistErr("delete recording", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(sc scanner) (Recording, error) {
	var r Recording
	var createdAt float64
	if err := sc.Scan(&r.ID, &r.Name, &r.Path, &r.Duration, &r.Size, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Recording{}, err
		}
		return Recording{}, persistErr("scan recording", err)
	}
	r.CreatedAt = timeFromUnix(createdAt)
	return r, nil
}

// SaveSetting stores a raw JSON value under key, replacing any previous one.
func (s *Store) SaveSetting(ctx context.Context, key string, value json.RawMessage) error {
	return s.inTx(ctx, "save setting", func(tx *sql.Tx) error {
		return upsertSetting(ctx, tx, key, value)
	})
}

func upsertSetting(ctx context.Context, tx *sql.Tx, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return &syncpoint.ValidationError{Field: "settings." + key, Reason: "not valid JSON"}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, string(value))
	if err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

// Setting returns the raw JSON value stored under key.
func (s *Store) Setting(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, persistErr("query setting", err)
	}
	return json.RawMessage(value), true, nil
}

// SeedState records which parts of the first-run bundle are already stored.
type SeedState struct {
	Recording bool
	Points    bool
	Settings  bool
}

// Complete reports whether there is nothing left for a seed to add.
func (st SeedState) Complete() bool {
	return st.Recording && st.Points
}

// SeedState reports which parts of the first-run bundle exist.
func (s *Store) SeedState(ctx context.Context) (SeedState, error) {
	var recs, points, settings int
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM recordings),
		       (SELECT COUNT(*) FROM sync_points),
		       (SELECT COUNT(*) FROM settings WHERE key = ?)
	`, AppStateKey).Scan(&recs, &points, &settings)
	if err != nil {
		return SeedState{}, persistErr("check initial data", err)
	}
	return SeedState{Recording: recs > 0, Points: points > 0, Settings: settings > 0}, nil
}

// HasInitialData reports whether both a recording and sync points exist.
func (s *Store) HasInitialData(ctx context.Context) (bool, error) {
	st, err := s.SeedState(ctx)
	if err != nil {
		return false, err
	}
	return st.Complete(), nil
}

// SaveInitialData stores a seed bundle in one transaction. It only fills
// what is missing: the recording when none is stored, the sync points when
// the table is empty and the UI settings blob when none is saved. Authored
// or migrated data is never replaced. It returns the number of sync points
// written.
func (s *Store) SaveInitialData(ctx context.Context, rec *Recording, points []syncpoint.Point, settings json.RawMessage) (int, error) {
	if err := checkTimes(points); err != nil {
		return 0, err
	}
	written := 0
	err := s.inTx(ctx, "save initial data", func(tx *sql.Tx) error {
		var recs, existing, saved int
		if err := tx.QueryRowContext(ctx, `
			SELECT (SELECT COUNT(*) FROM recordings),
			       (SELECT COUNT(*) FROM sync_points),
			       (SELECT COUNT(*) FROM settings WHERE key = ?)
		`, AppStateKey).Scan(&recs, &existing, &saved); err != nil {
			return fmt.Errorf("check initial data: %w", err)
		}
		if rec != nil && recs == 0 {
			if _, err := insertRecording(ctx, tx, *rec); err != nil {
				return err
			}
		}
		if existing == 0 {
			if err := insertPoints(ctx, tx, points); err != nil {
				return err
			}
			written = len(points)
		}
		if len(settings) > 0 && saved == 0 {
			return upsertSetting(ctx, tx, AppStateKey, settings)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// ReplaceAllWithSettings replaces the sync points and, when settings is
// non-empty, the UI settings blob in one transaction.
func (s *Store) ReplaceAllWithSettings(ctx context.Context, points []syncpoint.Point, settings json.RawMessage) error {
	if err := checkTimes(points); err != nil {
		return err
	}
	return s.inTx(ctx, "import sync data", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_points`); err != nil {
			return fmt.Errorf("clear sync points: %w", err)
		}
		if err := insertPoints(ctx, tx, points); err != nil {
			return err
		}
		if len(settings) > 0 {
			return upsertSetting(ctx, tx, AppStateKey, settings)
		}
		return nil
	})
}

// inTx runs fn in a transaction, rolling back on any error. Storage errors
// come back as *syncpoint.PersistenceError; validation errors pass through.
func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr(op, fmt.Errorf("begin transaction: %w", err))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if syncpoint.IsValidation(err) {
			return err
		}
		return persistErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return persistErr(op, fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func persistErr(op string, err error) error {
	return &syncpoint.PersistenceError{Op: op, Err: err, Quota: isFull(err)}
}

// isFull reports whether SQLite gave up because the disk or quota is full.
func isFull(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_FULL
	}
	return false
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
