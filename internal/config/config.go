// Package config reads server settings from the environment, loading a
// local .env file first when one exists.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string // listen address, e.g. ":8080"
	DatabaseURL string
	Env         string // "dev" or "production"
}

func Load() (Config, error) {
	// .env is a developer convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := Config{
		Addr: getenv("ADDR", ":8080"),
		Env:  getenv("APP_ENV", "dev"),
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
