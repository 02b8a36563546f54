// ABOUTME: Configuration loading and parsing for makearjowork
// ABOUTME: Supports YAML files with environment variable expansion plus an env-only path

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete makearjowork configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Arxiv    ArxivConfig    `yaml:"arxiv"`
	Calendar CalendarConfig `yaml:"calendar"`
	Persona  PersonaConfig  `yaml:"persona"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// BaseURL is the external URL used when building magic links
	BaseURL string `yaml:"base_url"`
	// MaintenanceToken guards the internal maintenance endpoints.
	// When empty they respond 404.
	MaintenanceToken string `yaml:"maintenance_token"`
}

// DatabaseConfig selects and configures the storage backend
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres"
	Driver string `yaml:"driver"`
	// Path is the sqlite database file location
	Path string `yaml:"path"`
	// DSN is the postgres connection string
	DSN string `yaml:"dsn"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	// AllowedDomain restricts sign-in to one email domain, e.g. "fydy.ai"
	AllowedDomain string `yaml:"allowed_domain"`

	SessionTTL time.Duration `yaml:"-"`
	LinkTTL    time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	SessionTTLRaw string `yaml:"session_ttl"`
	LinkTTLRaw    string `yaml:"link_ttl"`
}

// SMTPConfig holds outbound mail configuration. With no host configured,
// magic links are logged instead of emailed.
type SMTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	From string `yaml:"from"`
}

// GeminiConfig holds model configuration
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// ArxivConfig holds paper search configuration
type ArxivConfig struct {
	BaseURL string `yaml:"base_url"`

	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// CalendarConfig holds the optional Google Calendar integration
type CalendarConfig struct {
	// CredentialsBase64 is a base64-encoded service account JSON blob.
	// Empty disables the integration.
	CredentialsBase64 string `yaml:"credentials"`
	CalendarID        string `yaml:"calendar_id"`
}

// PersonaConfig points at the persona definition file
type PersonaConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
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

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
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

// applyDefaults fills in values that have sensible fallbacks.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Auth.AllowedDomain == "" {
		c.Auth.AllowedDomain = "fydy.ai"
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 30 * 24 * time.Hour
	}
	if c.Auth.LinkTTL == 0 {
		c.Auth.LinkTTL = 15 * time.Minute
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.From == "" {
		c.SMTP.From = c.SMTP.User
	}
	if c.Arxiv.Timeout == 0 {
		c.Arxiv.Timeout = 10 * time.Second
	}
	if c.Persona.Path == "" {
		c.Persona.Path = "persona.json"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.api_key is required")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.SessionTTLRaw != "" {
		cfg.Auth.SessionTTL, err = time.ParseDuration(cfg.Auth.SessionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session_ttl %q: %w", cfg.Auth.SessionTTLRaw, err)
		}
	}

	if cfg.Auth.LinkTTLRaw != "" {
		cfg.Auth.LinkTTL, err = time.ParseDuration(cfg.Auth.LinkTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing link_ttl %q: %w", cfg.Auth.LinkTTLRaw, err)
		}
	}

	if cfg.Arxiv.TimeoutRaw != "" {
		cfg.Arxiv.Timeout, err = time.ParseDuration(cfg.Arxiv.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing arxiv timeout %q: %w", cfg.Arxiv.TimeoutRaw, err)
		}
	}

	return nil
}
