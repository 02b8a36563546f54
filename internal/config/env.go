// ABOUTME: Environment-only configuration path for container deployments
// ABOUTME: Mirrors the YAML config using env tags

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig is the flat environment-variable view of Config.
type envConfig struct {
	HTTPAddr         string `env:"ADDR" envDefault:":5001"`
	BaseURL          string `env:"DOMAIN" envDefault:"http://localhost:5001"`
	MaintenanceToken string `env:"MAINTENANCE_TOKEN"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"tasks.db"`
	DatabaseDSN    string `env:"DATABASE_DSN"`

	JWTSecret     string        `env:"SECRET_KEY"`
	AllowedDomain string        `env:"ALLOWED_EMAIL_DOMAIN" envDefault:"fydy.ai"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	LinkTTL       time.Duration `env:"MAGIC_LINK_TTL" envDefault:"15m"`

	SMTPHost  string `env:"SMTP_HOST"`
	SMTPPort  int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser  string `env:"SMTP_USER"`
	SMTPPass  string `env:"SMTP_PASS"`
	FromEmail string `env:"FROM_EMAIL"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL"`

	ArxivBaseURL string        `env:"ARXIV_BASE_URL"`
	ArxivTimeout time.Duration `env:"ARXIV_TIMEOUT" envDefault:"10s"`

	CalendarCredentials string `env:"GOOGLE_CALENDAR_CREDENTIALS"`
	CalendarID          string `env:"GOOGLE_CALENDAR_ID" envDefault:"primary"`

	PersonaPath string `env:"PERSONA_FILE" envDefault:"persona.json"`

	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
}

// FromEnv builds a Config entirely from environment variables. Used when
// no config file is given, which is the norm on Cloud Run style deploys.
func FromEnv() (*Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			HTTPAddr:         raw.HTTPAddr,
			BaseURL:          raw.BaseURL,
			MaintenanceToken: raw.MaintenanceToken,
		},
		Database: DatabaseConfig{
			Driver: raw.DatabaseDriver,
			Path:   raw.DatabasePath,
			DSN:    raw.DatabaseDSN,
		},
		Auth: AuthConfig{
			JWTSecret:     raw.JWTSecret,
			AllowedDomain: raw.AllowedDomain,
			SessionTTL:    raw.SessionTTL,
			LinkTTL:       raw.LinkTTL,
		},
		SMTP: SMTPConfig{
			Host: raw.SMTPHost,
			Port: raw.SMTPPort,
			User: raw.SMTPUser,
			Pass: raw.SMTPPass,
			From: raw.FromEmail,
		},
		Gemini: GeminiConfig{
			APIKey: raw.GeminiAPIKey,
			Model:  raw.GeminiModel,
		},
		Arxiv: ArxivConfig{
			BaseURL: raw.ArxivBaseURL,
			Timeout: raw.ArxivTimeout,
		},
		Calendar: CalendarConfig{
			CredentialsBase64: raw.CalendarCredentials,
			CalendarID:        raw.CalendarID,
		},
		Persona: PersonaConfig{Path: raw.PersonaPath},
		Logging: LoggingConfig{Level: raw.LogLevel, Format: raw.LogFormat},
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}
