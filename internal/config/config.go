// ABOUTME: Configuration loading for the campus assistant front ends and mock API
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete campus assistant configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Auth    AuthConfig    `yaml:"auth" toml:"auth"`
	Chat    ChatConfig    `yaml:"chat" toml:"chat"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	MockAPI MockAPIConfig `yaml:"mockapi" toml:"mockapi"`
}

// ServerConfig locates the remote API
type ServerConfig struct {
	BaseURL        string        `yaml:"base_url" toml:"base_url"`
	RequestTimeout time.Duration `yaml:"-" toml:"-"`

	RequestTimeoutRaw string `yaml:"request_timeout" toml:"request_timeout"`
}

// AuthConfig holds session token storage configuration
type AuthConfig struct {
	// TokenPath is where the session token is persisted. Empty means the
	// per-user default under the XDG config directory.
	TokenPath string `yaml:"token_path" toml:"token_path"`
}

// ChatConfig holds chat streaming configuration
type ChatConfig struct {
	StreamTimeout time.Duration `yaml:"-" toml:"-"`

	StreamTimeoutRaw string `yaml:"stream_timeout" toml:"stream_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MockAPIConfig configures the development API server
type MockAPIConfig struct {
	Addr         string        `yaml:"addr" toml:"addr"`
	DatabasePath string        `yaml:"database_path" toml:"database_path"`
	JWTSecret    string        `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"-" toml:"-"`

	TokenTTLRaw string `yaml:"token_ttl" toml:"token_ttl"`
}

// Defaults
const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultRequestTimeout = 30 * time.Second
	DefaultStreamTimeout  = 5 * time.Minute
	DefaultMockAddr       = "127.0.0.1:8000"
	DefaultMockDatabase   = "campus-mock.db"
	DefaultTokenTTL       = 24 * time.Hour
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "CAMPUS_CONFIG"

// EnvAPIURL overrides server.base_url when set.
const EnvAPIURL = "CAMPUS_API_URL"

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded before decoding.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault resolves the config path (see Resolve) and loads it. When no
// file is found the defaults are returned. CAMPUS_API_URL overrides the base URL
// either way.
func LoadOrDefault(flagPath string) (*Config, string, error) {
	path, err := Resolve(flagPath)
	if err != nil {
		return nil, "", err
	}

	cfg := Default()
	if path != "" {
		cfg, err = Load(path)
		if err != nil {
			return nil, path, err
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		cfg.Server.BaseURL = strings.TrimRight(v, "/")
		if err := cfg.Validate(); err != nil {
			return nil, path, fmt.Errorf("validating %s: %w", EnvAPIURL, err)
		}
	}
	return cfg, path, nil
}

// Resolve picks the config file: the explicit path, then $CAMPUS_CONFIG, then
// ./campus.yaml, then ~/.config/campus-assistant/config.yaml. An explicit
// path that does not exist is an error; "" means none of the others exist.
func Resolve(flagPath string) (string, error) {
	for _, explicit := range []string{flagPath, os.Getenv(EnvConfigPath)} {
		if explicit == "" {
			continue
		}
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}

	candidates := []string{"campus.yaml", "campus.toml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(dir, "campus-assistant", "config.yaml"),
			filepath.Join(dir, "campus-assistant", "config.toml"),
		)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", p, err)
		}
	}
	return "", nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = DefaultBaseURL
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Chat.StreamTimeout == 0 {
		cfg.Chat.StreamTimeout = DefaultStreamTimeout
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.MockAPI.Addr == "" {
		cfg.MockAPI.Addr = DefaultMockAddr
	}
	if cfg.MockAPI.DatabasePath == "" {
		cfg.MockAPI.DatabasePath = DefaultMockDatabase
	}
	if cfg.MockAPI.TokenTTL == 0 {
		cfg.MockAPI.TokenTTL = DefaultTokenTTL
	}
}

// Validate checks that all configuration fields are usable.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url must use http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("server.base_url must include a host")
	}

	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	if c.Chat.StreamTimeout < 0 {
		return fmt.Errorf("chat.stream_timeout must be positive")
	}
	if c.MockAPI.TokenTTL < 0 {
		return fmt.Errorf("mockapi.token_ttl must be positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.request_timeout", cfg.Server.RequestTimeoutRaw, &cfg.Server.RequestTimeout},
		{"chat.stream_timeout", cfg.Chat.StreamTimeoutRaw, &cfg.Chat.StreamTimeout},
		{"mockapi.token_ttl", cfg.MockAPI.TokenTTLRaw, &cfg.MockAPI.TokenTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
