// Package config handles application configuration
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"todoapp/backend/rest"
	"todoapp/internal/state"
	"todoapp/internal/utils"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// APIConfig holds settings for the remote todo collection
type APIConfig struct {
	BaseURL        string `yaml:"base_url" toml:"base_url"`
	UserID         int    `yaml:"user_id" toml:"user_id"`
	Timeout        string `yaml:"timeout" toml:"timeout"`                 // e.g. "30s"
	MaxConcurrency int    `yaml:"max_concurrency" toml:"max_concurrency"` // 0 = unbounded
}

// UIConfig holds user interface settings
type UIConfig struct {
	DefaultFilter string `yaml:"default_filter" toml:"default_filter"`
	ErrorTimeout  string `yaml:"error_timeout" toml:"error_timeout"` // "" or "0s" keeps errors until dismissed
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file" toml:"file"` // log file used while the interactive UI runs
}

// ServerConfig holds settings for the local reference API server
type ServerConfig struct {
	Addr   string `yaml:"addr" toml:"addr"`
	DBPath string `yaml:"db_path" toml:"db_path"`
	Delay  string `yaml:"delay" toml:"delay"`
}

// Config represents the application configuration
type Config struct {
	API     APIConfig     `yaml:"api" toml:"api"`
	UI      UIConfig      `yaml:"ui" toml:"ui"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Server  ServerConfig  `yaml:"server" toml:"server"`
}

const (
	// DefaultServerAddr is where `todoapp serve` listens by default
	DefaultServerAddr = "127.0.0.1:5174"

	defaultTimeout = 30 * time.Second
)

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: rest.DefaultBaseURL,
			Timeout: defaultTimeout.String(),
		},
		UI: UIConfig{
			DefaultFilter: "all",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:   DefaultServerAddr,
			DBPath: filepath.Join(GetDataDir(), "todos.db"),
		},
	}
}

// DefaultPath returns the XDG config file location
func DefaultPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it creates one with defaults.
// Environment overrides are applied last.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath()
	}

	var cfg *Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
		if err := cfg.save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		loaded, err := LoadFromPath(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath parses a config file without creating it. Files ending in
// .toml are read as TOML, everything else as YAML.
func LoadFromPath(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is required")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if isTOML(configPath) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("invalid TOML in config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// applyDefaults fills unset fields
func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = rest.DefaultBaseURL
	}
	if c.UI.DefaultFilter == "" {
		c.UI.DefaultFilter = "all"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.DBPath != "" {
		c.Server.DBPath = ExpandPath(c.Server.DBPath)
	}
	if c.Logging.File != "" {
		c.Logging.File = ExpandPath(c.Logging.File)
	}
}

// applyEnv applies TODOAPP_BASE_URL and TODOAPP_USER_ID
func (c *Config) applyEnv() error {
	if v := os.Getenv("TODOAPP_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("TODOAPP_USER_ID"); v != "" {
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid TODOAPP_USER_ID: %q", v)
		}
		c.API.UserID = id
	}
	return nil
}

// save writes a fresh config to path: the commented sample for YAML, the
// encoded defaults for TOML.
func (c *Config) save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := []byte(sampleConfig)
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		content = buf.Bytes()
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := utils.ValidateBaseURL(c.GetBaseURL()); err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if c.API.UserID < 0 {
		return fmt.Errorf("api.user_id must not be negative, got %d", c.API.UserID)
	}
	if c.API.MaxConcurrency < 0 {
		return fmt.Errorf("api.max_concurrency must not be negative, got %d", c.API.MaxConcurrency)
	}

	durations := map[string]string{
		"api.timeout":      c.API.Timeout,
		"ui.error_timeout": c.UI.ErrorTimeout,
		"server.delay":     c.Server.Delay,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %q", key, value)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %q", key, value)
		}
	}

	if _, err := state.ParseFilter(c.UI.DefaultFilter); err != nil {
		return fmt.Errorf("ui.default_filter: %w", err)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q (must be debug, info, warn or error)", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json", "logfmt":
	default:
		return fmt.Errorf("invalid logging.format: %q (must be text, json or logfmt)", c.Logging.Format)
	}

	return nil
}

// ApplyFlags applies CLI flag overrides to the configuration
func (c *Config) ApplyFlags(baseURL string, userID int) {
	if baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if userID > 0 {
		c.API.UserID = userID
	}
}

// GetBaseURL returns the collection API base URL
func (c *Config) GetBaseURL() string {
	if c.API.BaseURL == "" {
		return rest.DefaultBaseURL
	}
	return c.API.BaseURL
}

// RequireUserID returns the configured owner id or a suggestion error when unset.
func (c *Config) RequireUserID() (int, error) {
	if c.API.UserID <= 0 {
		return 0, utils.ErrUserIDNotConfigured()
	}
	return c.API.UserID, nil
}

// GetTimeout returns the per-request timeout.
// Returns 30 seconds if not configured or if parsing fails.
func (c *Config) GetTimeout() time.Duration {
	return parseDurationOr(c.API.Timeout, defaultTimeout)
}

// GetMaxConcurrency returns the cap on requests of one bulk operation (0 = unbounded).
func (c *Config) GetMaxConcurrency() int {
	if c.API.MaxConcurrency < 0 {
		return 0
	}
	return c.API.MaxConcurrency
}

// GetDefaultFilter returns the filter the UI starts with.
func (c *Config) GetDefaultFilter() state.Filter {
	f, err := state.ParseFilter(c.UI.DefaultFilter)
	if err != nil {
		return state.FilterAll
	}
	return f
}

// GetErrorTimeout returns how long an error banner stays up. 0 disables auto-dismiss.
func (c *Config) GetErrorTimeout() time.Duration {
	return parseDurationOr(c.UI.ErrorTimeout, 0)
}

// GetLogFile returns the log file used while the interactive UI runs.
func (c *Config) GetLogFile() string {
	if c.Logging.File == "" {
		return filepath.Join(GetCacheDir(), "todoapp.log")
	}
	return c.Logging.File
}

// GetLogOptions returns the logger settings.
func (c *Config) GetLogOptions() utils.LogOptions {
	return utils.LogOptions{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
	}
}

// GetServerAddr returns the reference server listen address.
func (c *Config) GetServerAddr() string {
	if c.Server.Addr == "" {
		return DefaultServerAddr
	}
	return c.Server.Addr
}

// GetServerDBPath returns the reference server database path.
func (c *Config) GetServerDBPath() string {
	if c.Server.DBPath == "" {
		return filepath.Join(GetDataDir(), "todos.db")
	}
	return c.Server.DBPath
}

// GetServerDelay returns the artificial latency added to every server response.
func (c *Config) GetServerDelay() time.Duration {
	return parseDurationOr(c.Server.Delay, 0)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// getXDGDir returns a directory path following XDG spec.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "todoapp")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "todoapp")
	}
	return filepath.Join(home, fallbackPath, "todoapp")
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// GetCacheDir returns the cache directory following XDG spec
func GetCacheDir() string {
	return getXDGDir("XDG_CACHE_HOME", ".cache")
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
