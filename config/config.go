// Package config provides runtime configuration values for the storefront.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration knobs for the HTTP server and the store.
type Config struct {
	HTTPAddr        string
	PostgresDSN     string // empty selects the in-memory store
	ShutdownTimeout time.Duration
	TxMaxRetries    int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8082"),
		PostgresDSN:     getenv("POSTGRES_DSN", ""),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 15),
		TxMaxRetries:    atoienv("TX_MAX_RETRIES", 3),
	}
}
