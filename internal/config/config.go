// Package config loads taskdesk settings from defaults, an optional .env file
// and TASKDESK_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TASKDESK_"

// legacyDatabaseEnv is read for compatibility with existing deployments
const legacyDatabaseEnv = "DATABASE_URL"

type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
}

type DatabaseConfig struct {
	// Path is the SQLite file location.
	Path string `koanf:"path"`

	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`

	// AcquireTimeout bounds how long an operation waits for a pooled connection.
	AcquireTimeout time.Duration `koanf:"acquire_timeout"`

	// BusyTimeout is passed to SQLite as _busy_timeout.
	BusyTimeout time.Duration `koanf:"busy_timeout"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
	// File receives log output while the TUI owns the terminal.
	File string `koanf:"file"`
}

// Default returns the built in configuration
func Default() *Config {
	dataDir := dataDir()
	return &Config{
		Database: DatabaseConfig{
			Path:            filepath.Join(dataDir, "taskdesk.db"),
			MaxOpenConns:    8,
			MaxIdleConns:    4,
			ConnMaxLifetime: 30 * time.Minute,
			AcquireTimeout:  5 * time.Second,
			BusyTimeout:     5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "taskdesk.log"),
		},
	}
}

// Load builds the configuration. envFile may be empty, in which case ".env" in
// the working directory is used when present.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if v := strings.TrimSpace(os.Getenv(legacyDatabaseEnv)); v != "" {
		if err := k.Set("database.path", v); err != nil {
			return nil, fmt.Errorf("config: apply %s: %w", legacyDatabaseEnv, err)
		}
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: transformEnvKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pool cannot work with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("config: database.path must not be empty")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("config: database.max_open_conns must be positive, got %d", c.Database.MaxOpenConns)
	}
	if c.Database.AcquireTimeout <= 0 {
		return fmt.Errorf("config: database.acquire_timeout must be positive, got %s", c.Database.AcquireTimeout)
	}
	return nil
}

// transformEnvKey maps TASKDESK_DATABASE_MAX_OPEN_CONNS to database.max_open_conns.
func transformEnvKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' })
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], value
	}
	return parts[0] + "." + strings.Join(parts[1:], "_"), value
}

// dataDir follows the XDG data directory convention
func dataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "taskdesk")
}
