// Package config collects the service's environment-driven settings in
// one place so cmd/serve can construct every dependency explicitly.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port          string
	SessionsDir   string
	SessionTTL    time.Duration
	SweepInterval time.Duration
	MaxImageSize  int
	CatalogDB     string
	SAMURL        string
	CLIPURL       string
}

// Load reads configuration from the environment, applying defaults that
// match a local development setup.
func Load() Config {
	return Config{
		Port:          getEnv("PORT", "8000"),
		SessionsDir:   getEnv("SESSIONS_DIR", "sessions"),
		SessionTTL:    time.Duration(getEnvInt("SESSION_TTL_MINUTES", 10)) * time.Minute,
		SweepInterval: time.Duration(getEnvInt("SESSION_SWEEP_SECONDS", 60)) * time.Second,
		MaxImageSize:  getEnvInt("MAX_IMAGE_SIZE", 1024),
		CatalogDB:     getEnv("CATALOG_DB", "catalog.db"),
		SAMURL:        os.Getenv("SAM_URL"),
		CLIPURL:       os.Getenv("CLIP_URL"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
