// Package logger builds the zap loggers used by ordersctl.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a development logger when debug is set and a production logger
// otherwise. Both write to stderr so that stdout stays free for command
// output.
func New(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		// Development configuration with more verbose output
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Install builds a logger with New and makes it the zap global logger. The
// returned function restores the previous global and flushes the logger.
func Install(debug bool) (*zap.Logger, func(), error) {
	logger, err := New(debug)
	if err != nil {
		return nil, nil, err
	}
	restore := zap.ReplaceGlobals(logger)
	return logger, func() {
		_ = logger.Sync()
		restore()
	}, nil
}
