package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr   string
	SyncAddr   string
	NotifyAddr string
	DBPath     string
	JWTSecret  string
	TokenTTL   time.Duration
	LogMode    string
	SeedPath   string
}

// Load reads configuration from the environment with sane local-dev
// defaults.
func Load() Config {
	return Config{
		HTTPAddr:   getEnv("HTTP_ADDR", ":8080"),
		SyncAddr:   getEnv("SYNC_ADDR", ":9090"),
		NotifyAddr: getEnv("NOTIFY_ADDR", ":7070"),
		DBPath:     getEnv("DB_PATH", "./data/audiora.db"),
		JWTSecret:  getEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:   time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
		LogMode:    getEnv("LOG_MODE", "development"),
		SeedPath:   getEnv("SEED_PATH", "./data/sample_books.json"),
	}
}

func getEnv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func getEnvInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
