// Package logging builds the zap logger used by vxh. Logs go to stderr so
// stdout stays reserved for command output.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects level and encoding.
type Options struct {
	Verbose bool   // Forces debug level
	Level   string // debug, info, warn or error; default warn
	Format  string // console or json; default console
}

// ParseLevel maps a level name to a zap level. Unknown names give warn.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// New builds a logger writing to stderr.
func New(opts Options) *zap.Logger {
	level := ParseLevel(opts.Level)
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	var config zap.Config
	if opts.Format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		// Fallback to basic logger
		logger, _ = zap.NewProduction()
	}
	return logger.Named("vxh")
}
