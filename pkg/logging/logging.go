package logging

import (
	"log/slog"
	"os"
)

// Name is the name of the application that the logger is for.
type Name string

// Config is the configuration for a logger.
type Config struct {
	// name is the name of the application.
	name Name

	// level is the minimum level that will be logged.
	level slog.Level
}

// NewConfig creates a new logging configuration.
func NewConfig(name Name) *Config {
	level := slog.LevelInfo
	if os.Getenv(EnvDebug) != "" {
		level = slog.LevelDebug
	}

	return &Config{
		name:  name,
		level: level,
	}
}

// CommonLogger creates the logger used across the application. All logs are
// written to stdout as JSON with the application name attached.
func CommonLogger(cfg *Config) (*slog.Logger, error) {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.level,
	})

	l := slog.New(h).With(slog.String(KeyAppName, string(cfg.name)))

	// Set the default logger so that packages logging through slog directly
	// still carry the common handler.
	slog.SetDefault(l)

	return l, nil
}
