// Package config loads the server configuration from a YAML file and the
// environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

const (
	AppName        = "oaipmh"
	ConfigFileName = "config"
	ConfigFileExt  = "yaml"
	EnvPrefix      = "OAIPMH"

	DriverStatic = "static"
	DriverSQLite = "sqlite"
)

var ErrInvalidConfig = errors.New("config: invalid")

// Config is the server configuration.
type Config struct {
	Listen          string        `mapstructure:"listen"`
	BaseURL         string        `mapstructure:"base_url"`
	Path            string        `mapstructure:"path"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Repository      Repository    `mapstructure:"repository"`
}

// Repository selects where records come from.
type Repository struct {
	// Driver is static for a YAML catalog or sqlite for a database.
	Driver   string `mapstructure:"driver"`
	Catalog  string `mapstructure:"catalog"`
	DSN      string `mapstructure:"dsn"`
	PageSize int    `mapstructure:"page_size"`
}

// LoadOptions tell Load where to look.
type LoadOptions struct {
	// ConfigFilePath is used exclusively if set, and must exist.
	ConfigFilePath string
	// ConfigDirPath replaces the default directory ~/.oaipmh.
	ConfigDirPath string
}

// Dir returns the default directory for configuration and data, ~/.oaipmh.
func Dir() (string, error) {
	dir, err := homedir.Expand("~/." + AppName)
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return dir, nil
}

// DefaultConfig returns the configuration used without any file or
// environment.
func DefaultConfig(dir string) Config {
	return Config{
		Listen:          ":8080",
		BaseURL:         "http://localhost:8080/oai",
		Path:            "/oai",
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
		Repository: Repository{
			Driver:   DriverStatic,
			Catalog:  filepath.Join(dir, "catalog.yaml"),
			DSN:      filepath.Join(dir, "oaipmh.db"),
			PageSize: 100,
		},
	}
}

// Load reads the configuration. Missing files in the default location are
// fine, environment variables like OAIPMH_REPOSITORY_DRIVER override
// everything. The path of the file used, if any, is returned as well.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = Dir(); err != nil {
			return nil, "", err
		}
	}

	v := viper.New()
	defaults := DefaultConfig(dir)
	v.SetDefault("listen", defaults.Listen)
	v.SetDefault("base_url", defaults.BaseURL)
	v.SetDefault("path", defaults.Path)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)
	v.SetDefault("repository.driver", defaults.Repository.Driver)
	v.SetDefault("repository.catalog", defaults.Repository.Catalog)
	v.SetDefault("repository.dsn", defaults.Repository.DSN)
	v.SetDefault("repository.page_size", defaults.Repository.PageSize)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", fmt.Errorf("config file not found: %s", opts.ConfigFilePath)
		}
		resolvedPath = opts.ConfigFilePath
	} else if path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt); fileExists(path) {
		resolvedPath = path
	}
	if resolvedPath != "" {
		v.SetConfigFile(resolvedPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config %s: %w", resolvedPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	var err error
	if cfg.Repository.Catalog, err = homedir.Expand(cfg.Repository.Catalog); err != nil {
		return nil, "", err
	}
	if cfg.Repository.DSN, err = homedir.Expand(cfg.Repository.DSN); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolvedPath, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs error
	fail := func(format string, a ...interface{}) {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, a...)))
	}
	if c.Listen == "" {
		fail("listen address is empty")
	}
	if !strings.HasPrefix(c.Path, "/") {
		fail("path must start with /, got %q", c.Path)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		fail("log_level: %v", err)
	}
	if c.ShutdownTimeout <= 0 {
		fail("shutdown_timeout must be positive")
	}
	switch c.Repository.Driver {
	case DriverStatic:
		if c.Repository.Catalog == "" {
			fail("repository.catalog is required for the static driver")
		}
	case DriverSQLite:
		if c.Repository.DSN == "" {
			fail("repository.dsn is required for the sqlite driver")
		}
	default:
		fail("unknown repository.driver %q, want %s or %s", c.Repository.Driver, DriverStatic, DriverSQLite)
	}
	if c.Repository.PageSize <= 0 {
		fail("repository.page_size must be positive")
	}
	return errs
}

// ZapLevel returns the parsed log level, info if it cannot be parsed.
func (c Config) ZapLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
