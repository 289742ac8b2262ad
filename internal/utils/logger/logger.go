// Package logger builds the application's zap logger.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration.
type Config struct {
	Level       string   // debug, info, warn, error
	Format      string   // json or console
	OutputPaths []string // defaults to stdout
}

// ParseLevel converts a level name to a zap level. Unknown names map to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a zap logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	console := cfg.Format == "console"

	var encoderConfig zapcore.EncoderConfig
	if console {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	encoding := "json"
	if console {
		encoding = "console"
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(cfg.Level)),
		Development:      console,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
