// Package config loads the application's own runtime configuration:
// built-in defaults, overridden by an optional .env file in the data
// directory, overridden by SWITCHYARD_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/switchyard-project/switchyard/internal/paths"
)

// DefaultListen binds the HTTP API to loopback; the window surface and
// one-shot CLI commands are same-machine clients.
const DefaultListen = "127.0.0.1:7617"

// Config is the application runtime configuration.
type Config struct {
	DataDir        string
	Listen         string
	LogLevel       string
	LogFormat      string
	LogFile        string
	TrayEnabled    bool
	OpenBrowser    bool
	HiddenProfiles []string
}

// Load resolves the configuration. The data directory is fixed first (it
// locates the .env file), then .env values and process environment fill in
// the rest.
func Load() (*Config, error) {
	dataDir, err := paths.DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}

	envFile := filepath.Join(dataDir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Warn().Err(err).Str("file", envFile).Msg("Failed to load .env file")
		}
	}
	// Development convenience: a .env in the working directory also counts.
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:     dataDir,
		Listen:      DefaultListen,
		LogLevel:    "info",
		LogFormat:   "auto",
		TrayEnabled: true,
		OpenBrowser: false,
	}

	if listen := os.Getenv("SWITCHYARD_LISTEN"); listen != "" {
		cfg.Listen = listen
	}
	if level := os.Getenv("SWITCHYARD_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if format := os.Getenv("SWITCHYARD_LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}
	if file := os.Getenv("SWITCHYARD_LOG_FILE"); file != "" {
		cfg.LogFile = file
	}
	if tray := os.Getenv("SWITCHYARD_TRAY"); tray != "" {
		enabled, err := strconv.ParseBool(tray)
		if err != nil {
			log.Warn().Str("value", tray).Msg("Invalid SWITCHYARD_TRAY value; keeping default")
		} else {
			cfg.TrayEnabled = enabled
		}
	}
	if open := os.Getenv("SWITCHYARD_OPEN_BROWSER"); open != "" {
		enabled, err := strconv.ParseBool(open)
		if err != nil {
			log.Warn().Str("value", open).Msg("Invalid SWITCHYARD_OPEN_BROWSER value; keeping default")
		} else {
			cfg.OpenBrowser = enabled
		}
	}
	if hidden := os.Getenv("SWITCHYARD_HIDDEN_PROFILES"); hidden != "" {
		cfg.HiddenProfiles = splitPatterns(hidden)
	}

	return cfg, nil
}

// splitPatterns parses a comma-separated pattern list, dropping blanks.
func splitPatterns(raw string) []string {
	parts := strings.Split(raw, ",")
	patterns := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}
