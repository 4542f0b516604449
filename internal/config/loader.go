// Package config loads scheduler settings from SCHEDULER_* environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/logging"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "SCHEDULER"

// MemoryDSN selects the in-memory storage instead of SQLite.
const MemoryDSN = "memory"

// Setting keys. The environment variable is EnvPrefix + "_" + upper case key.
const (
	KeyHTTPPort        = "http_port"
	KeySQLiteDSN       = "sqlite_dsn"
	KeyAdminTokenHash  = "admin_token_hash"
	KeySegmentDuration = "segment_duration"
	KeyLogLevel        = "log_level"
	KeyLogFormat       = "log_format"
	KeyShutdownTimeout = "shutdown_timeout"
)

// Config captures the settings of the scheduler process.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	AdminTokenHash  string
	SegmentDuration time.Duration
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// ErrMissingSettings is wrapped by errors about absent required settings.
var ErrMissingSettings = errors.New("missing required settings")

// ErrInvalidSettings is wrapped by errors about unparsable settings.
var ErrInvalidSettings = errors.New("invalid settings")

// NewViper returns a viper instance with defaults and environment binding.
// A non-empty configFile is read as well; environment variables win over it.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyHTTPPort, "8080")
	v.SetDefault(KeySQLiteDSN, "data/scheduler.db")
	v.SetDefault(KeyAdminTokenHash, "")
	v.SetDefault(KeySegmentDuration, availability.DefaultSegmentDuration.String())
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyShutdownTimeout, "10s")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load reads the settings from the environment only.
func Load() (Config, error) {
	v, err := NewViper("")
	if err != nil {
		return Config{}, err
	}
	return FromViper(v)
}

// FromViper validates the settings held by v.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		SQLiteDSN:      strings.TrimSpace(v.GetString(KeySQLiteDSN)),
		AdminTokenHash: strings.TrimSpace(v.GetString(KeyAdminTokenHash)),
		LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFormat:      strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	port, err := strconv.Atoi(strings.TrimSpace(v.GetString(KeyHTTPPort)))
	if err != nil || port <= 0 || port > 65535 {
		invalid = append(invalid, envName(KeyHTTPPort))
	} else {
		cfg.HTTPPort = port
	}

	if cfg.SQLiteDSN == "" {
		missing = append(missing, envName(KeySQLiteDSN))
	}

	segment, err := time.ParseDuration(strings.TrimSpace(v.GetString(KeySegmentDuration)))
	if err != nil {
		invalid = append(invalid, envName(KeySegmentDuration))
	} else if _, err := availability.NewSegment(segment); err != nil {
		invalid = append(invalid, envName(KeySegmentDuration))
	} else {
		cfg.SegmentDuration = segment
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		invalid = append(invalid, envName(KeyLogLevel))
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		invalid = append(invalid, envName(KeyLogFormat))
	}

	timeout, err := time.ParseDuration(strings.TrimSpace(v.GetString(KeyShutdownTimeout)))
	if err != nil || timeout <= 0 {
		invalid = append(invalid, envName(KeyShutdownTimeout))
	} else {
		cfg.ShutdownTimeout = timeout
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingSettings, strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// RequireAdminToken reports ErrMissingSettings when no admin token hash is
// configured. The HTTP server refuses to start without one.
func (c Config) RequireAdminToken() error {
	if c.AdminTokenHash == "" {
		return fmt.Errorf("%w: %s", ErrMissingSettings, envName(KeyAdminTokenHash))
	}
	return nil
}

// Segment returns the configured segment.
func (c Config) Segment() availability.Segment {
	segment, err := availability.NewSegment(c.SegmentDuration)
	if err != nil {
		return availability.DefaultSegment()
	}
	return segment
}

// UsesMemoryStorage reports whether the DSN selects in-memory storage.
func (c Config) UsesMemoryStorage() bool {
	return strings.EqualFold(c.SQLiteDSN, MemoryDSN)
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}
