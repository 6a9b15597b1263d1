package config

import (
	"os"
	"path/filepath"
)

// Default values
const (
	// Limits defaults
	DefaultMaxPackageSize = "512MB"

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"
)

// ConfigDir returns the config directory path
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kpkg"
	}
	return filepath.Join(home, ".kpkg")
}

// KeysDir returns the default signing key directory
func KeysDir() string {
	return filepath.Join(ConfigDir(), "keys")
}

// StagingDir returns the default packaging staging directory
func StagingDir() string {
	return filepath.Join(ConfigDir(), "staging")
}

// ConfigFilePath returns the config file path
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Keys: KeysConfig{
			Directory: KeysDir(),
		},
		Staging: StagingConfig{
			Directory: StagingDir(),
		},
		Limits: LimitsConfig{
			MaxPackageSize: DefaultMaxPackageSize,
		},
		Audit: AuditConfig{
			Strict: false,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
