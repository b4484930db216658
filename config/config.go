package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	Port      string
	DBTimeout time.Duration
	LogLevel  zerolog.Level

	Mongo struct {
		URI      string
		Database string
	}

	JWT struct {
		Secret []byte
		TTL    time.Duration
	}

	Email struct {
		Provider      string
		PostmarkToken string
		SendGridKey   string
		Sender        string
	}

	Admin struct {
		Email    string
		Password string
	}
}

// Load reads configuration from the environment. If path is set, the .env file
// there is loaded first; a missing file is ignored.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	cfg := &Config{}
	cfg.Port = getEnv("PORT", "8000")

	var err error
	if cfg.DBTimeout, err = time.ParseDuration(getEnv("DB_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("invalid DB_TIMEOUT: %w", err)
	}
	if cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg.Mongo.URI = getEnv("MONGODB_URI", "mongodb://localhost:27017")
	cfg.Mongo.Database = getEnv("MONGODB_DATABASE", "aeroclub")

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	cfg.JWT.Secret = []byte(secret)
	if cfg.JWT.TTL, err = time.ParseDuration(getEnv("JWT_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}

	cfg.Email.Provider = strings.ToLower(os.Getenv("EMAIL_PROVIDER"))
	cfg.Email.PostmarkToken = os.Getenv("POSTMARK_API_TOKEN")
	cfg.Email.SendGridKey = os.Getenv("SENDGRID_API_KEY")
	cfg.Email.Sender = os.Getenv("EMAIL_SENDER")
	switch cfg.Email.Provider {
	case "":
	case "postmark":
		if cfg.Email.PostmarkToken == "" {
			return nil, errors.New("POSTMARK_API_TOKEN is required for the postmark provider")
		}
	case "sendgrid":
		if cfg.Email.SendGridKey == "" {
			return nil, errors.New("SENDGRID_API_KEY is required for the sendgrid provider")
		}
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.Email.Provider)
	}

	cfg.Admin.Email = os.Getenv("ADMIN_EMAIL")
	cfg.Admin.Password = os.Getenv("ADMIN_PASSWORD")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
