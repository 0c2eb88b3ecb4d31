package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// ApplicationConfiguration holds settings of the arcgo process itself rather
// than of the lifecycle manager.
type ApplicationConfiguration struct {
	// LogLevel is the minimal level of messages to log ("debug", "info",
	// "warn", "error", ...). Empty means "info".
	LogLevel string `yaml:"LogLevel"`
	// LogPath is a file to write logs to, stderr is used when empty.
	LogPath string `yaml:"LogPath"`
	// LogEncoding is either "console" or "json".
	LogEncoding string `yaml:"LogEncoding"`

	Prometheus BasicService `yaml:"Prometheus"`
}

// Validate checks ApplicationConfiguration for internal consistency.
func (a ApplicationConfiguration) Validate() error {
	if len(a.LogLevel) != 0 {
		if _, err := zapcore.ParseLevel(a.LogLevel); err != nil {
			return fmt.Errorf("invalid LogLevel: %w", err)
		}
	}
	switch a.LogEncoding {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid LogEncoding: %q", a.LogEncoding)
	}
	if a.Prometheus.Enabled && len(a.Prometheus.Addresses) == 0 {
		return fmt.Errorf("Prometheus is enabled, but no Addresses are given")
	}
	return nil
}
