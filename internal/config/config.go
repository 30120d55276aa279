// Package config loads settings from an optional YAML file, TOKAIDO_*
// environment variables and built-in defaults, in that order of precedence
// (env wins over file).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/damgoweb/tokaido-orai/internal/legacy"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "TOKAIDO"

// Config is the resolved configuration.
type Config struct {
	DataDir      string
	DBPath       string
	CatalogPath  string
	PlayerSocket string
	ExportDir    string

	Legacy    LegacyConfig
	Dashboard DashboardConfig
	Seed      SeedConfig
	Log       LogConfig
}

// LegacyConfig locates the old flat key-value store. At most one of
// RedisURL and File is normally set; RedisURL wins when both are.
type LegacyConfig struct {
	RedisURL string
	File     string
	Key      string
}

// DashboardConfig configures the browser dashboard server.
type DashboardConfig struct {
	Host string
	Port int
}

// SeedConfig locates the first-run bundle in object storage.
type SeedConfig struct {
	Endpoint       string
	Bucket         string
	SettingsObject string
	AudioObject    string
	AccessKey      string
	SecretKey      string
	Region         string
	Secure         bool
}

// Enabled reports whether a seed bundle is configured.
func (s SeedConfig) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != "" && s.SettingsObject != ""
}

// LogConfig configures the rotating log file. An empty File logs to stderr.
type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// DefaultDataDir returns the per-user data directory.
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".tokaido")
	}
	return filepath.Join(dir, "tokaido")
}

// Load reads path (if non-empty) and applies env overrides and defaults.
// A missing file named explicitly is an error; with an empty path, a
// config.yaml in the data directory is used when present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("data_dir"))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	dataDir := DefaultDataDir()
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("db_path", "")
	v.SetDefault("catalog_path", "")
	v.SetDefault("player_socket", "")
	v.SetDefault("export_dir", ".")

	v.SetDefault("legacy.redis_url", "")
	v.SetDefault("legacy.file", "")
	v.SetDefault("legacy.key", legacy.SyncDataKey)

	v.SetDefault("dashboard.host", "127.0.0.1")
	v.SetDefault("dashboard.port", 8080)

	v.SetDefault("seed.endpoint", "")
	v.SetDefault("seed.bucket", "")
	v.SetDefault("seed.settings_object", "")
	v.SetDefault("seed.audio_object", "")
	v.SetDefault("seed.access_key", "")
	v.SetDefault("seed.secret_key", "")
	v.SetDefault("seed.region", "us-east-1")
	v.SetDefault("seed.secure", true)

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
}

// fromViper resolves paths that default relative to the data directory.
func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		DataDir:      v.GetString("data_dir"),
		DBPath:       v.GetString("db_path"),
		CatalogPath:  v.GetString("catalog_path"),
		PlayerSocket: v.GetString("player_socket"),
		ExportDir:    v.GetString("export_dir"),
		Legacy: LegacyConfig{
			RedisURL: v.GetString("legacy.redis_url"),
			File:     v.GetString("legacy.file"),
			Key:      v.GetString("legacy.key"),
		},
		Dashboard: DashboardConfig{
			Host: v.GetString("dashboard.host"),
			Port: v.GetInt("dashboard.port"),
		},
		Seed: SeedConfig{
			Endpoint:       v.GetString("seed.endpoint"),
			Bucket:         v.GetString("seed.bucket"),
			SettingsObject: v.GetString("seed.settings_object"),
			AudioObject:    v.GetString("seed.audio_object"),
			AccessKey:      v.GetString("seed.access_key"),
			SecretKey:      v.GetString("seed.secret_key"),
			Region:         v.GetString("seed.region"),
			Secure:         v.GetBool("seed.secure"),
		},
		Log: LogConfig{
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
		},
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "tokaido.sqlite")
	}
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = filepath.Join(cfg.DataDir, "catalog.json")
	}
	if cfg.PlayerSocket == "" {
		cfg.PlayerSocket = filepath.Join(cfg.DataDir, "player.sock")
	}
	return cfg
}
