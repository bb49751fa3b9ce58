package main

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// newLogger builds the process logger. Logs go to stderr so they never mix
// with command output. The returned func flushes buffered entries.
func newLogger(level string, development bool) (logr.Logger, func(), error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = atomicLevel
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	z, err := cfg.Build()
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("failed to build logger: %w", err)
	}

	return zapr.NewLogger(z), func() { _ = z.Sync() }, nil
}
