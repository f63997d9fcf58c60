// Package logging builds the application's zap logger from configuration
// and adapts it for the libraries that bring their own logging hooks.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mrlokans/healthbook/internal/config"
)

// New creates a logger with the configured level and encoding.
func New(cfg config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	switch cfg.Format {
	case "console":
		zc = zap.NewDevelopmentConfig()
	case "", "json":
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "time"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}

// GormLevel maps the application log level onto gorm's query logger.
// SQL statements are only printed in debug mode.
func GormLevel(cfg config.Log) gormlogger.LogLevel {
	switch strings.ToLower(cfg.Level) {
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

// Printf adapts a zap logger to printf-style callers.
type Printf struct {
	Logger *zap.Logger
}

func (p Printf) Info(message string, params ...any) {
	p.Logger.Sugar().Infof(message, params...)
}

func (p Printf) Error(message string, params ...any) {
	p.Logger.Sugar().Errorf(message, params...)
}
