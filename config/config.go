package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the authoring core.
type Config struct {
	Environment      string
	EventAPIURL      string
	GeocodeAPIURL    string
	GeocodeDebounce  time.Duration
	HTTPTimeout      time.Duration
	EmailProvider    string
	EmailFromAddress string
	EmailFromName    string
	AWSRegion        string
	AWSAccessKeyID   string
	AWSSecretKey     string
}

// Load loads configuration from environment variables.
// It attempts to load from .env file if not in production.
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Load .env file if not in production
	// We don't return error here because in production .env might not exist
	// and we rely on system environment variables
	if env != "production" {
		if err := godotenv.Load(); err != nil {
			log.Printf("Warning: .env file not found or couldn't be loaded: %v", err)
		}
	}

	cfg := &Config{
		Environment:      env,
		EventAPIURL:      os.Getenv("EVENT_API_URL"),
		GeocodeAPIURL:    os.Getenv("GEOCODE_API_URL"),
		GeocodeDebounce:  350 * time.Millisecond,
		HTTPTimeout:      15 * time.Second,
		EmailProvider:    os.Getenv("EMAIL_PROVIDER"),
		EmailFromAddress: os.Getenv("EMAIL_FROM_ADDRESS"),
		EmailFromName:    os.Getenv("EMAIL_FROM_NAME"),
		AWSRegion:        os.Getenv("AWS_REGION"),
		AWSAccessKeyID:   os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:     os.Getenv("AWS_SECRET_ACCESS_KEY"),
	}

	if ms := os.Getenv("GEOCODE_DEBOUNCE_MS"); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil && n > 0 {
			cfg.GeocodeDebounce = time.Duration(n) * time.Millisecond
		}
	}
	if s := os.Getenv("HTTP_TIMEOUT_SECONDS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			cfg.HTTPTimeout = time.Duration(n) * time.Second
		}
	}

	// Set defaults
	if cfg.EventAPIURL == "" {
		cfg.EventAPIURL = "http://localhost:8080/api/v1"
	}
	if cfg.GeocodeAPIURL == "" {
		cfg.GeocodeAPIURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.EmailProvider == "" {
		cfg.EmailProvider = "noop"
	}

	return cfg, nil
}
