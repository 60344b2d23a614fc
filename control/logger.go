// control/logger.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"github.com/yanun0323/errors"
	"go.uber.org/zap"
)

// NewLogger builds a zap logger from the log_level and log_format settings.
// The console format uses the development encoder.
func NewLogger(c *Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "parse log level").With("level", c.LogLevel)
	}
	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	l, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return l, nil
}
