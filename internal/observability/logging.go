// Package observability builds the structured loggers shared by the hosts.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/hexbeat/internal/config"
)

// Logging pairs a logger with the level that gates it. Level is an
// http.Handler, so a host can expose runtime level changes.
type Logging struct {
	Logger *zap.Logger
	Level  zap.AtomicLevel
}

// NewLogging creates a structured logger from the given logging configuration.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured Logging or a non-nil error.
func NewLogging(cfg config.LoggingConfig) (*Logging, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
		// Beat logs are bursty; sampling would drop whole beats.
		zapCfg.Sampling = nil
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	atom := zap.NewAtomicLevelAt(level)
	zapCfg.Level = atom
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return &Logging{Logger: logger, Level: atom}, nil
}

// NewLogger is NewLogging for callers that only need the logger.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	l, err := NewLogging(cfg)
	if err != nil {
		return nil, err
	}
	return l.Logger, nil
}

// ProvideLogger extracts the logger for dependency injection. The cleanup
// flushes buffered entries.
func ProvideLogger(l *Logging) (*zap.Logger, func()) {
	return l.Logger, func() { _ = l.Logger.Sync() }
}
