package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/damgoweb/tokaido-orai/internal/catalog"
	"github.com/damgoweb/tokaido-orai/internal/config"
	"github.com/damgoweb/tokaido-orai/internal/db"
	"github.com/damgoweb/tokaido-orai/internal/legacy"
	"github.com/damgoweb/tokaido-orai/internal/logging"
	"github.com/damgoweb/tokaido-orai/internal/migrate"
)

// env is the per-invocation runtime: resolved config, open store, logger.
type env struct {
	cfg    *config.Config
	store  *db.Store
	logOut io.Writer
	logger *log.Logger
	closer io.Closer

	// Outcome of the startup legacy migration.
	migration    migrate.Result
	migrationErr error
}

// loadConfig resolves the config file and the --db/--catalog overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if catPath, _ := cmd.Flags().GetString("catalog"); catPath != "" {
		cfg.CatalogPath = catPath
	}
	return cfg, nil
}

// openEnv loads config, sets up logging and opens the store. When logFile
// is true and no log file is configured, logs go to <data dir>/tokaido.log
// so they stay off the terminal.
func openEnv(cmd *cobra.Command, logFile bool) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	opts := logging.Options{File: cfg.Log.File, MaxSizeMB: cfg.Log.MaxSizeMB, MaxBackups: cfg.Log.MaxBackups}
	if opts.File == "" && logFile {
		opts.File = filepath.Join(cfg.DataDir, "tokaido.log")
	}
	out, closer := logging.Output(opts)
	logger := logging.New(out, "tokaido")

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		closer.Close()
		return nil, err
	}

	e := &env{cfg: cfg, store: store, logOut: out, logger: logger, closer: closer}
	e.migrateLegacy(cmd.Context())
	return e, nil
}

func (e *env) Close() {
	e.store.Close()
	e.closer.Close()
}

// migrateLegacy moves legacy data into the store once. Failures are logged
// and never block startup.
func (e *env) migrateLegacy(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	src, closeSrc, err := legacySource(e.cfg)
	if err != nil {
		e.migrationErr = err
		e.logger.Printf("legacy migration skipped: %v", err)
		return
	}
	defer closeSrc()

	e.migration, e.migrationErr = migrate.LegacyIfPresent(ctx, e.store, src, e.cfg.Legacy.Key)
	if e.migrationErr != nil {
		e.logger.Printf("legacy migration failed: %v", e.migrationErr)
		return
	}
	if e.migration.Migrated {
		e.logger.Printf("migrated %d legacy sync points (settings moved: %v)", e.migration.Points, e.migration.SettingsMoved)
	}
}

// legacySource opens Redis when legacy.redis_url is set, otherwise the
// legacy JSON file.
func legacySource(cfg *config.Config) (legacy.Store, func(), error) {
	if cfg.Legacy.RedisURL != "" {
		rs, err := legacy.NewRedisStore(cfg.Legacy.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { rs.Close() }, nil
	}
	file := cfg.Legacy.File
	if file == "" {
		file = filepath.Join(cfg.DataDir, "legacy.json")
	}
	return legacy.NewFileStore(file), func() {}, nil
}

// loadCatalog reads the catalog named by the config.
func (e *env) loadCatalog() (*catalog.Catalog, error) {
	cat, err := catalog.Load(e.cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("%w (set catalog_path or --catalog)", err)
	}
	return cat, nil
}
