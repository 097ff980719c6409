// Package config loads unboxed settings from a yaml file, UNBOXED_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haziq21/letter-boxed-solver/pkg/db"
	"github.com/haziq21/letter-boxed-solver/pkg/store"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const (
	// EnvPrefix namespaces environment overrides, e.g. UNBOXED_SQLITE_PATH.
	EnvPrefix = "UNBOXED"

	configFileName = "unboxed"
	configFileType = "yaml"
)

// Keys shared with command-line flag bindings.
const (
	KeyBackend  = "backend"
	KeyLogLevel = "log.level"
	KeyFormat   = "format"
)

// Config is the fully decoded configuration.
type Config struct {
	Store  store.Options `mapstructure:",squash"`
	Server ServerConfig  `mapstructure:"server"`
	Ingest IngestConfig  `mapstructure:"ingest"`
	Log    LogConfig     `mapstructure:"log"`
	Format string        `mapstructure:"format"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type IngestConfig struct {
	Workers     int           `mapstructure:"workers"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	// Glossary is an optional word list used to fill missing definitions.
	Glossary string `mapstructure:"glossary"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// defaults lists every key so AutomaticEnv can see it during Unmarshal.
var defaults = map[string]interface{}{
	KeyBackend:             store.BackendSQLite,
	"sqlite.path":          "puzzles.db",
	"sqlite.driver":        db.DriverCgo,
	"sqlite.layout":        string(store.LayoutNormalized),
	"redis.addr":           "localhost:6379",
	"redis.password":       "",
	"redis.db":             0,
	"redis.puzzles_key":    store.DefaultPuzzlesKey,
	"redis.dictionary_key": store.DefaultDictionaryKey,
	"redis.warn_bytes":     8 << 20,
	"server.addr":          ":8080",
	"server.read_timeout":  10 * time.Second,
	"server.write_timeout": 30 * time.Second,
	"ingest.workers":       4,
	"ingest.max_attempts":  3,
	"ingest.retry_delay":   200 * time.Millisecond,
	"ingest.glossary":      "",
	KeyLogLevel:            "info",
	KeyFormat:              "json",
}

// New returns a viper instance with defaults and environment overrides. When
// path is empty, unboxed.yaml is looked up in the working directory and its
// absence is not an error; an explicit path must exist.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return v, nil
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no component can act on.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case store.BackendSQLite, store.BackendRedis, store.BackendMemory:
	default:
		return fmt.Errorf("backend must be one of sqlite, redis, memory: got %q", c.Store.Backend)
	}
	switch store.Layout(c.Store.SQLite.Layout) {
	case store.LayoutNormalized, store.LayoutFlat:
	default:
		return fmt.Errorf("sqlite.layout must be normalized or flat: got %q", c.Store.SQLite.Layout)
	}
	switch c.Store.SQLite.Driver {
	case db.DriverCgo, db.DriverPure:
	default:
		return fmt.Errorf("sqlite.driver must be %s or %s: got %q", db.DriverCgo, db.DriverPure, c.Store.SQLite.Driver)
	}
	switch c.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("format must be json or yaml: got %q", c.Format)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be positive")
	}
	if c.Ingest.MaxAttempts <= 0 {
		return fmt.Errorf("ingest.max_attempts must be positive")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return lvl, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
