package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/lazypower/drift/internal/feed"
)

// Config holds all drift configuration.
type Config struct {
	Server   ServerConfig       `toml:"server"`
	Database DatabaseConfig     `toml:"database"`
	Log      LogConfig          `toml:"log"`
	Scoring  feed.ScoringParams `toml:"scoring"`
	Client   ClientConfig       `toml:"client"`
}

type ServerConfig struct {
	Bind        string   `toml:"bind" validate:"required"`
	Port        int      `toml:"port" validate:"min=1,max=65535"`
	SlowRequest string   `toml:"slow_request"` // e.g. "500ms"; empty disables
	CORSOrigins []string `toml:"cors_origins"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=trace debug info warn warning error off disabled"`
	Format string `toml:"format" validate:"omitempty,oneof=console json"`
}

// ClientConfig tunes the scroll client's bounded buffer.
type ClientConfig struct {
	URL      string `toml:"url"`
	PageSize int    `toml:"page_size" validate:"min=1,max=100"`
	MaxItems int    `toml:"max_items" validate:"min=1"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:        "127.0.0.1",
			Port:        37778,
			SlowRequest: "500ms",
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Scoring: feed.DefaultParams(),
		Client: ClientConfig{
			URL:      "http://127.0.0.1:37778",
			PageSize: 50,
			MaxItems: 500,
		},
	}
}

// DefaultPath returns the default config file path: ~/.drift/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".drift", "config.toml"), nil
}

// Load builds a Config from defaults, the TOML file at path (if present),
// a .env file in the working directory (if present) and DRIFT_* environment
// variables, in that order. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := env("DRIFT_DB"); v != "" {
		c.Database.Path = v
	}
	if v := env("DRIFT_BIND"); v != "" {
		c.Server.Bind = v
	}
	if v := env("DRIFT_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DRIFT_PORT: invalid port %q", v)
		}
		c.Server.Port = p
	}
	if v := env("DRIFT_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := env("DRIFT_LOG_FORMAT"); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
	if v := env("DRIFT_URL"); v != "" {
		c.Client.URL = v
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// Validate checks every section. Scoring errors wrap feed.ErrInvalidParams.
func (c *Config) Validate() error {
	if err := feed.Validator().Struct(c.Server); err != nil {
		return fmt.Errorf("config [server]: %w", err)
	}
	if _, err := c.SlowRequestDuration(); err != nil {
		return err
	}
	if err := feed.Validator().Struct(c.Log); err != nil {
		return fmt.Errorf("config [log]: %w", err)
	}
	if err := feed.Validator().Struct(c.Client); err != nil {
		return fmt.Errorf("config [client]: %w", err)
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("config [scoring]: %w", err)
	}
	return nil
}

// SlowRequestDuration parses Server.SlowRequest. Empty means 0 (disabled).
func (c *Config) SlowRequestDuration() (time.Duration, error) {
	if c.Server.SlowRequest == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Server.SlowRequest)
	if err != nil {
		return 0, fmt.Errorf("config [server] slow_request: %w", err)
	}
	return d, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
