package logging

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a json production logger, or a console logger in development.
func New(level string, development bool) (*zap.Logger, error) {
	logs, _, err := NewWithLevel(level, development)
	return logs, err
}

// NewWithLevel is New that also hands out the level for runtime changes.
func NewWithLevel(level string, development bool) (*zap.Logger, zap.AtomicLevel, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, zap.AtomicLevel{}, errors.Wrapf(err, "invalid log level %q", level)
	}
	atom := zap.NewAtomicLevelAt(lvl)

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = atom
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	logs, err := cfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, errors.Wrap(err, "failed to build logger")
	}
	return logs, atom, nil
}
