// ABOUTME: Configuration loading and parsing for xdmod-mcp
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultXDMoDBaseURL is the public XDMoD warehouse endpoint.
const DefaultXDMoDBaseURL = "https://xdmod.access-ci.org"

// Config represents the complete xdmod-mcp configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	XDMoD   XDMoDConfig   `yaml:"xdmod"`
	SSE     SSEConfig     `yaml:"sse"`
	Audit   AuditConfig   `yaml:"audit"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds server address configuration. HTTPAddr is only used
// when the server runs in HTTP mode.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// XDMoDConfig holds the analytics warehouse connection settings
type XDMoDConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIToken string        `yaml:"api_token"`
	Timeout  time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// SSEConfig holds streaming connection settings
type SSEConfig struct {
	Keepalive time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	KeepaliveRaw string `yaml:"keepalive"`
}

// AuditConfig holds the invocation audit log configuration. An empty path
// disables auditing.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{HTTPAddr: "0.0.0.0:8080"},
		XDMoD: XDMoDConfig{
			BaseURL:  DefaultXDMoDBaseURL,
			APIToken: os.Getenv("XDMOD_API_TOKEN"),
			Timeout:  30 * time.Second,
		},
		SSE:     SSEConfig{Keepalive: 30 * time.Second},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.XDMoD.BaseURL == "" {
		return fmt.Errorf("xdmod.base_url is required")
	}

	if c.SSE.Keepalive < 0 {
		return fmt.Errorf("sse.keepalive must not be negative")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.SSE.KeepaliveRaw != "" {
		cfg.SSE.Keepalive, err = time.ParseDuration(cfg.SSE.KeepaliveRaw)
		if err != nil {
			return fmt.Errorf("parsing keepalive %q: %w", cfg.SSE.KeepaliveRaw, err)
		}
	}

	if cfg.XDMoD.TimeoutRaw != "" {
		cfg.XDMoD.Timeout, err = time.ParseDuration(cfg.XDMoD.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.XDMoD.TimeoutRaw, err)
		}
	}

	return nil
}
