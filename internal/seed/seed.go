// Package seed installs the first-run bundle (a settings document and,
// optionally, the narration audio) from S3-compatible object storage.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/damgoweb/tokaido-orai/internal/backup"
	"github.com/damgoweb/tokaido-orai/internal/db"
	"github.com/damgoweb/tokaido-orai/internal/syncpoint"
)

// maxDocumentSize bounds the settings document read into memory.
const maxDocumentSize = 8 << 20

// ErrNotConfigured is returned when no bucket or settings object is set.
var ErrNotConfigured = errors.New("seed bundle not configured")

// Config locates the seed bundle.
type Config struct {
	Endpoint       string
	Bucket         string
	SettingsObject string
	AudioObject    string // optional
	AccessKey      string
	SecretKey      string
	Region         string
	Secure         bool
	DataDir        string // where the audio file is saved
	Logger         *log.Logger
}

// Target receives the seed bundle. SaveInitialData must only fill the parts
// that are missing and report how many sync points it wrote.
type Target interface {
	SeedState(ctx context.Context) (db.SeedState, error)
	SaveInitialData(ctx context.Context, rec *db.Recording, points []syncpoint.Point, settings json.RawMessage) (int, error)
}

// Result describes what Load did.
type Result struct {
	Skipped   bool
	Points    int
	AudioPath string
}

// Loader downloads and installs the seed bundle.
type Loader struct {
	client *minio.Client
	config Config
	logger *log.Logger
}

// New creates a Loader with a minio client for cfg.Endpoint.
func New(cfg Config) (*Loader, error) {
	if cfg.Bucket == "" || cfg.SettingsObject == "" {
		return nil, ErrNotConfigured
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.Secure,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Loader around an existing client.
func NewWithClient(client *minio.Client, cfg Config) *Loader {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Loader{client: client, config: cfg, logger: logger}
}

// Load installs the parts of the seed bundle dst is missing. A store that
// already holds a recording and sync points is left alone; sync points the
// user authored or migrated are never replaced. Everything is written in one
// transaction, so a failed download leaves dst as it was.
func (l *Loader) Load(ctx context.Context, dst Target) (Result, error) {
	st, err := dst.SeedState(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("check initial data: %w", err)
	}
	if st.Complete() {
		l.logger.Printf("initial data present, skipping seed")
		return Result{Skipped: true}, nil
	}

	doc, err := l.fetchDocument(ctx)
	if err != nil {
		return Result{}, err
	}

	var rec *db.Recording
	if !st.Recording && len(doc.RecordingsMetadata) > 0 {
		m := doc.RecordingsMetadata[0]
		rec = &db.Recording{Name: m.Name, Duration: m.Duration, Size: m.Size, CreatedAt: m.CreatedAt}
	}

	var res Result
	if !st.Recording && l.config.AudioObject != "" {
		audioPath, size, err := l.fetchAudio(ctx)
		if err != nil {
			return Result{}, err
		}
		res.AudioPath = audioPath
		if rec == nil {
			rec = &db.Recording{Name: path.Base(l.config.AudioObject)}
		}
		rec.Path = audioPath
		if rec.Size == 0 {
			rec.Size = size
		}
	}

	var points []syncpoint.Point
	if !st.Points {
		points = syncpoint.Sort(doc.SyncData)
	} else {
		l.logger.Printf("sync points already stored, seeding the rest")
	}

	n, err := dst.SaveInitialData(ctx, rec, points, doc.Settings)
	if err != nil {
		if res.AudioPath != "" {
			os.Remove(res.AudioPath)
		}
		return Result{}, fmt.Errorf("save initial data: %w", err)
	}
	res.Points = n
	l.logger.Printf("seeded %d sync points from %s/%s", n, l.config.Bucket, l.config.SettingsObject)
	return res, nil
}

func (l *Loader) fetchDocument(ctx context.Context) (*backup.Document, error) {
	obj, err := l.client.GetObject(ctx, l.config.Bucket, l.config.SettingsObject, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get settings object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read settings object: %w", err)
	}
	doc, err := backup.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse settings object: %w", err)
	}
	return doc, nil
}

func (l *Loader) fetchAudio(ctx context.Context) (string, int64, error) {
	dir := l.config.DataDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create data directory: %w", err)
	}
	dest := filepath.Join(dir, path.Base(l.config.AudioObject))
	if err := l.client.FGetObject(ctx, l.config.Bucket, l.config.AudioObject, dest, minio.GetObjectOptions{}); err != nil {
		return "", 0, fmt.Errorf("download audio object: %w", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return "", 0, fmt.Errorf("stat audio file: %w", err)
	}
	return dest, info.Size(), nil
}

// IsNotFound reports whether err is a missing bucket or object.
func IsNotFound(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return false
	}
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}
