package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DBFile      string
	APIAddr     string
	OwnerAddr   string
	BaseURL     string
	UploadsPath string
	JWTSecret   string
	TokenExpiry time.Duration

	// Optional bootstrap accounts created at startup if absent.
	OwnerEmail    string
	OwnerPassword string
}

func Load(cliMode bool) (*Config, error) {
	tokenExpiry, err := time.ParseDuration(getEnv("TOKEN_EXPIRY", "168h"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBFile:        getEnv("CLUBDESK_DB", "clubdesk.db"),
		APIAddr:       getEnv("API_ADDR", ":4000"),
		OwnerAddr:     getEnv("OWNER_ADDR", "localhost:4001"),
		BaseURL:       getEnv("BASE_URL", "http://localhost:4000"),
		UploadsPath:   getEnv("UPLOADS_PATH", "uploads"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		TokenExpiry:   tokenExpiry,
		OwnerEmail:    os.Getenv("OWNER_EMAIL"),
		OwnerPassword: os.Getenv("OWNER_PASSWORD"),
	}

	if err := cfg.Validate(cliMode); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate(cliMode bool) error {
	if c.JWTSecret == "" && !cliMode {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.TokenExpiry <= 0 {
		return fmt.Errorf("TOKEN_EXPIRY must be greater than 0")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
