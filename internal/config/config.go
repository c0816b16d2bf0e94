// Package config resolves the emission configuration once, from a
// single explicit struct. Precedence, lowest to highest: built-in
// defaults, a .env file in the working directory, then process
// environment variables (FATOORA_*). Callers pass the resolved struct
// down; nothing reads the environment after Load returns.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/rezonia/fatoora/internal/submit"
)

// AuthScheme selects how the authority credentials are presented
type AuthScheme string

const (
	AuthBasic  AuthScheme = "basic"
	AuthBearer AuthScheme = "bearer"
)

// Config is the full emission configuration
type Config struct {
	// Environment is sandbox or production
	Environment submit.Environment `validate:"required,oneof=sandbox production"`

	// Seller registration, supplied by the tenant subsystem
	VATNumber string `validate:"required,len=15,numeric"`
	CRN       string `validate:"required"`

	// Signing certificate reference; key material is read only by the
	// signing package
	CertPath    string
	KeyPath     string
	KeyPassword string

	// Authority endpoints and credentials
	BaseURL        string     `validate:"required,url"`
	AuthScheme     AuthScheme `validate:"omitempty,oneof=basic bearer"`
	AuthUsername   string
	AuthSecret     string
	RequestTimeout time.Duration
	MaxRetries     uint64

	// Ledger backing store; empty DSN selects the in-memory ledger
	PostgresDSN string

	// Server
	ListenAddress string
	LogLevel      string
}

// Load resolves the configuration with the documented precedence
func Load() (*Config, error) {
	// .env is optional; missing file is not an error
	_ = godotenv.Load()

	cfg := &Config{
		Environment:    submit.Environment(envOr("FATOORA_ENV", string(submit.EnvSandbox))),
		VATNumber:      os.Getenv("FATOORA_VAT_NUMBER"),
		CRN:            os.Getenv("FATOORA_CRN"),
		CertPath:       os.Getenv("FATOORA_CERT_PATH"),
		KeyPath:        os.Getenv("FATOORA_KEY_PATH"),
		KeyPassword:    os.Getenv("FATOORA_KEY_PASSWORD"),
		BaseURL:        os.Getenv("FATOORA_BASE_URL"),
		AuthScheme:     AuthScheme(envOr("FATOORA_AUTH_SCHEME", string(AuthBasic))),
		AuthUsername:   os.Getenv("FATOORA_AUTH_USERNAME"),
		AuthSecret:     os.Getenv("FATOORA_AUTH_SECRET"),
		RequestTimeout: envDuration("FATOORA_REQUEST_TIMEOUT", submit.DefaultTimeout),
		MaxRetries:     envUint("FATOORA_MAX_RETRIES", submit.DefaultMaxRetries),
		PostgresDSN:    os.Getenv("FATOORA_POSTGRES_DSN"),
		ListenAddress:  envOr("FATOORA_LISTEN_ADDRESS", ":8080"),
		LogLevel:       envOr("FATOORA_LOG_LEVEL", "info"),
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = submit.BaseURLFor(cfg.Environment)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SubmitOptions translates the config into submission client options
func (c *Config) SubmitOptions() []submit.Option {
	opts := []submit.Option{
		submit.WithTimeout(c.RequestTimeout),
		submit.WithMaxRetries(c.MaxRetries),
	}
	switch c.AuthScheme {
	case AuthBearer:
		if c.AuthSecret != "" {
			opts = append(opts, submit.WithBearerToken(c.AuthSecret))
		}
	default:
		if c.AuthUsername != "" {
			opts = append(opts, submit.WithBasicAuth(c.AuthUsername, c.AuthSecret))
		}
	}
	return opts
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envUint(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
