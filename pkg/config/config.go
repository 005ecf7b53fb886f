// Package config loads umlboard settings.
//
// Settings are layered, later layers winning:
//
//  1. built-in defaults ([Default])
//  2. the TOML file at [DefaultPath] (optional)
//  3. an optional .env file loaded into the environment ([LoadDotEnv])
//  4. UMLBOARD_* environment variables
//  5. command-line flags (applied by the CLI)
//
// Example config.toml:
//
//	[storage]
//	backend = "redis"
//
//	[storage.redis]
//	addr = "localhost:6379"
//	prefix = "umlboard:"
//
//	[server]
//	addr = ":8080"
//	read_timeout = "15s"
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/umlboard/pkg/cache"
	"github.com/matzehuels/umlboard/pkg/kv"
)

const appName = "umlboard"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "UMLBOARD_"

// Config is the complete application configuration.
type Config struct {
	Storage StorageConfig `toml:"storage"`
	Server  ServerConfig  `toml:"server"`
}

// StorageConfig selects the saved-diagram backend.
type StorageConfig struct {
	Backend string      `toml:"backend"`
	Dir     string      `toml:"dir"`
	Redis   RedisConfig `toml:"redis"`
	Mongo   MongoConfig `toml:"mongo"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// MongoConfig configures the mongo backend.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	ReadTimeout    Duration `toml:"read_timeout"`
	WriteTimeout   Duration `toml:"write_timeout"`
	MaxUploadBytes int64    `toml:"max_upload_bytes"`
	// RenderCacheEntries bounds the in-memory SVG cache. Zero disables it.
	RenderCacheEntries int `toml:"render_cache_entries"`
}

// Duration is a time.Duration written as a string such as "15s".
type Duration struct{ time.Duration }

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration. Saved diagrams go to
// dataDir/diagrams.
func Default(dataDir string) Config {
	return Config{
		Storage: StorageConfig{
			Backend: kv.BackendFile,
			Dir:     filepath.Join(dataDir, "diagrams"),
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: kv.DefaultRedisPrefix},
			Mongo: MongoConfig{
				Database:   kv.DefaultMongoDatabase,
				Collection: kv.DefaultMongoCollection,
			},
		},
		Server: ServerConfig{
			Addr:               ":8080",
			ReadTimeout:        Duration{15 * time.Second},
			WriteTimeout:       Duration{30 * time.Second},
			MaxUploadBytes:     10 << 20,
			RenderCacheEntries: cache.DefaultMemoryEntries,
		},
	}
}

// =============================================================================
// Paths
// =============================================================================

// DefaultPath returns the config file path using the XDG standard
// (~/.config/umlboard/config.toml).
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// DataDir returns the data directory using the XDG standard
// (~/.local/share/umlboard).
func DataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", appName), nil
}

// =============================================================================
// Loading
// =============================================================================

// Load builds the configuration from defaults, the TOML file at path and the
// environment. A missing file is not an error; an empty path skips the file.
func Load(path string) (Config, error) {
	dataDir, err := DataDir()
	if err != nil {
		return Config{}, fmt.Errorf("locate data dir: %w", err)
	}
	cfg := Default(dataDir)

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("parse %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment.
// Variables already set win. A missing file is ignored.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from UMLBOARD_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("STORAGE_DIR", &c.Storage.Dir)
	str("REDIS_ADDR", &c.Storage.Redis.Addr)
	str("REDIS_PASSWORD", &c.Storage.Redis.Password)
	str("REDIS_PREFIX", &c.Storage.Redis.Prefix)
	str("MONGO_URI", &c.Storage.Mongo.URI)
	str("MONGO_DATABASE", &c.Storage.Mongo.Database)
	str("MONGO_COLLECTION", &c.Storage.Mongo.Collection)
	str("SERVER_ADDR", &c.Server.Addr)

	if v, ok := lookup(EnvPrefix + "REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_DB: %w", EnvPrefix, err)
		}
		c.Storage.Redis.DB = db
	}
	if v, ok := lookup(EnvPrefix + "MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sMAX_UPLOAD_BYTES: %w", EnvPrefix, err)
		}
		c.Server.MaxUploadBytes = n
	}
	return nil
}

// Validate checks that the selected backend is fully configured.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case kv.BackendFile:
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the file backend")
		}
	case kv.BackendMemory:
	case kv.BackendRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis backend")
		}
	case kv.BackendMongo:
		if c.Storage.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri is required for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q (valid: file, memory, redis, mongo)", c.Storage.Backend)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if c.Server.RenderCacheEntries < 0 {
		return fmt.Errorf("server.render_cache_entries must not be negative")
	}
	return nil
}

// KV converts the storage section to backend options.
func (c Config) KV() kv.Options {
	return kv.Options{
		Backend: c.Storage.Backend,
		Dir:     c.Storage.Dir,
		Redis: kv.RedisOptions{
			Addr:     c.Storage.Redis.Addr,
			Password: c.Storage.Redis.Password,
			DB:       c.Storage.Redis.DB,
			Prefix:   c.Storage.Redis.Prefix,
		},
		Mongo: kv.MongoOptions{
			URI:        c.Storage.Mongo.URI,
			Database:   c.Storage.Mongo.Database,
			Collection: c.Storage.Mongo.Collection,
		},
	}
}

// Encode writes the configuration as TOML. Secrets are masked.
func (c Config) Encode(w io.Writer) error {
	masked := c
	if masked.Storage.Redis.Password != "" {
		masked.Storage.Redis.Password = "********"
	}
	return toml.NewEncoder(w).Encode(masked)
}
