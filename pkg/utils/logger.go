package utils

import "go.uber.org/zap"

// NewLogger returns the "kotae" zap logger. When debug is true, uses development
// config (human-readable, debug level); otherwise uses production config (JSON,
// info level). Both write to stderr so command output on stdout stays parseable.
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named("kotae"), nil
}
