// Package config loads rj settings from defaults, an optional TOML file and
// RJ_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. RJ_REMOTE_URL.
const EnvPrefix = "RJ"

// ErrConfigExists is returned by WriteDefault when the file is already there.
var ErrConfigExists = errors.New("config file already exists")

// Storage selects and locates the local key-value store.
type Storage struct {
	Backend string `mapstructure:"backend" toml:"backend"`
	Dir     string `mapstructure:"dir" toml:"dir"`
}

// Remote configures the sync endpoint.
type Remote struct {
	URL       string `mapstructure:"url" toml:"url"`
	LocalOnly bool   `mapstructure:"local_only" toml:"local_only"`
	Session   string `mapstructure:"session" toml:"session,omitempty"`
}

// Sync tunes the coordinator.
type Sync struct {
	Debounce time.Duration `mapstructure:"debounce" toml:"debounce"`
	Retry    bool          `mapstructure:"retry" toml:"retry"`
	RetryMax int           `mapstructure:"retry_max" toml:"retry_max"`
}

// Server configures `rj serve`.
type Server struct {
	Addr             string `mapstructure:"addr" toml:"addr"`
	Store            string `mapstructure:"store" toml:"store"`
	SQLitePath       string `mapstructure:"sqlite_path" toml:"sqlite_path"`
	RedisURL         string `mapstructure:"redis_url" toml:"redis_url"`
	PasswordHash     string `mapstructure:"password_hash" toml:"password_hash"`
	SessionSecret    string `mapstructure:"session_secret" toml:"session_secret"`
	AnthropicAPIKey  string `mapstructure:"anthropic_api_key" toml:"anthropic_api_key"`
	AnthropicBaseURL string `mapstructure:"anthropic_base_url" toml:"anthropic_base_url"`
}

// AI configures article summaries.
type AI struct {
	Model  string `mapstructure:"model" toml:"model"`
	APIKey string `mapstructure:"api_key" toml:"api_key,omitempty"`
}

// Scholar configures paper search.
type Scholar struct {
	BaseURL string `mapstructure:"base_url" toml:"base_url"`
	Mailto  string `mapstructure:"mailto" toml:"mailto"`
}

// Log configures the process logger.
type Log struct {
	File    string `mapstructure:"file" toml:"file"`
	Verbose bool   `mapstructure:"verbose" toml:"verbose"`
}

// Config is the full rj configuration.
type Config struct {
	Storage Storage `mapstructure:"storage" toml:"storage"`
	Remote  Remote  `mapstructure:"remote" toml:"remote"`
	Sync    Sync    `mapstructure:"sync" toml:"sync"`
	Server  Server  `mapstructure:"server" toml:"server"`
	AI      AI      `mapstructure:"ai" toml:"ai"`
	Scholar Scholar `mapstructure:"scholar" toml:"scholar"`
	Log     Log     `mapstructure:"log" toml:"log"`

	// Path is the file the config was read from, empty when none was found.
	Path string `mapstructure:"-" toml:"-"`
}

// Dir returns the directory holding config.toml.
func Dir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "rj")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "rj")
	}
	return ".rj"
}

// DataDir returns the default directory for local data.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "rj")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "rj")
	}
	return ".rj"
}

// DefaultPath is the config file used when none is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Default returns the built-in configuration.
func Default() Config {
	data := DataDir()
	return Config{
		Storage: Storage{Backend: "fs", Dir: filepath.Join(data, "store")},
		Sync:    Sync{Debounce: 500 * time.Millisecond, RetryMax: 3},
		Server: Server{
			Addr:             ":8080",
			Store:            "sqlite",
			SQLitePath:       filepath.Join(data, "server.db"),
			AnthropicBaseURL: "https://api.anthropic.com",
		},
		AI:      AI{Model: "claude-haiku-4-5-20251001"},
		Scholar: Scholar{BaseURL: "https://api.openalex.org"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.dir", d.Storage.Dir)
	v.SetDefault("remote.url", d.Remote.URL)
	v.SetDefault("remote.local_only", d.Remote.LocalOnly)
	v.SetDefault("remote.session", "")
	v.SetDefault("sync.debounce", d.Sync.Debounce)
	v.SetDefault("sync.retry", d.Sync.Retry)
	v.SetDefault("sync.retry_max", d.Sync.RetryMax)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.store", d.Server.Store)
	v.SetDefault("server.sqlite_path", d.Server.SQLitePath)
	v.SetDefault("server.redis_url", "")
	v.SetDefault("server.password_hash", "")
	v.SetDefault("server.session_secret", "")
	v.SetDefault("server.anthropic_api_key", "")
	v.SetDefault("server.anthropic_base_url", d.Server.AnthropicBaseURL)
	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("scholar.base_url", d.Scholar.BaseURL)
	v.SetDefault("scholar.mailto", "")
	v.SetDefault("log.file", "")
	v.SetDefault("log.verbose", false)
}

// Load reads configuration. An explicit path must exist; the default path
// is optional.
func Load(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, env bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if env {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}
	v.SetConfigType("toml")

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	v.SetConfigFile(path)

	cfg := &Config{}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), !explicit && errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		cfg.Path = path
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown backend names.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "fs", "sqlite", "memory":
	default:
		return fmt.Errorf("storage.backend must be fs, sqlite or memory, got %q", c.Storage.Backend)
	}
	switch c.Server.Store {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("server.store must be sqlite or redis, got %q", c.Server.Store)
	}
	if c.Sync.RetryMax < 0 {
		return fmt.Errorf("sync.retry_max must not be negative")
	}
	return nil
}

// tomlConfig mirrors Config with durations as strings, the form viper
// reads back.
type tomlConfig struct {
	Storage Storage `toml:"storage"`
	Remote  Remote  `toml:"remote"`
	Sync    struct {
		Debounce string `toml:"debounce"`
		Retry    bool   `toml:"retry"`
		RetryMax int    `toml:"retry_max"`
	} `toml:"sync"`
	Server  Server  `toml:"server"`
	AI      AI      `toml:"ai"`
	Scholar Scholar `toml:"scholar"`
	Log     Log     `toml:"log"`
}

// Write stores cfg as TOML at path, replacing any existing file.
func Write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	out := tomlConfig{
		Storage: cfg.Storage,
		Remote:  cfg.Remote,
		Server:  cfg.Server,
		AI:      cfg.AI,
		Scholar: cfg.Scholar,
		Log:     cfg.Log,
	}
	out.Sync.Debounce = cfg.Sync.Debounce.String()
	out.Sync.Retry = cfg.Sync.Retry
	out.Sync.RetryMax = cfg.Sync.RetryMax

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(out); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	return f.Close()
}

// WriteDefault writes the built-in configuration to path unless a file
// already exists there.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	return Write(path, Default())
}

// Set updates a single key in the file at path, creating it from defaults
// when missing. Environment overrides are not written back.
func Set(path, key string, value any) error {
	if !knownKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	cfg, err := load(path, false)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if cfg == nil {
		d := Default()
		cfg = &d
	}

	v := viper.New()
	v.Set(key, value)
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to apply %s: %w", key, err)
	}
	return Write(path, *cfg)
}

// Keys lists every settable key.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	return v.AllKeys()
}

func knownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}
