package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the application configuration
type Config struct {
	Keys    KeysConfig    `mapstructure:"keys" yaml:"keys"`
	Staging StagingConfig `mapstructure:"staging" yaml:"staging"`
	Limits  LimitsConfig  `mapstructure:"limits" yaml:"limits"`
	Audit   AuditConfig   `mapstructure:"audit" yaml:"audit"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// KeysConfig contains signing key settings
type KeysConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// StagingConfig contains packaging staging settings
type StagingConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// LimitsConfig contains input size limits applied before loading
type LimitsConfig struct {
	// MaxPackageSize caps the size of container files the CLI will read,
	// e.g. "512MB". The core loader only does bounds validation against
	// the buffer it is given; this cap runs before the file is read.
	MaxPackageSize string `mapstructure:"max_package_size" yaml:"max_package_size"`
}

// AuditConfig contains audit settings
type AuditConfig struct {
	Strict bool `mapstructure:"strict" yaml:"strict"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Validate validates the configuration and falls back to defaults for
// invalid values
func (c *Config) Validate() error {
	if c.Keys.Directory == "" {
		c.Keys.Directory = KeysDir()
	}
	if c.Staging.Directory == "" {
		c.Staging.Directory = StagingDir()
	}
	if c.Limits.MaxPackageSize == "" {
		c.Limits.MaxPackageSize = DefaultMaxPackageSize
	}
	if _, err := ParseSize(c.Limits.MaxPackageSize); err != nil {
		c.Limits.MaxPackageSize = DefaultMaxPackageSize
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		c.Logging.Level = DefaultLogLevel
	}
	switch c.Logging.Format {
	case "pretty", "json":
	default:
		c.Logging.Format = DefaultLogFormat
	}
	return nil
}

// MaxPackageSizeBytes returns the configured package size cap in bytes
func (c *Config) MaxPackageSizeBytes() int64 {
	n, err := ParseSize(c.Limits.MaxPackageSize)
	if err != nil {
		n, _ = ParseSize(DefaultMaxPackageSize)
	}
	return n
}

// ParseSize parses a human-readable size string like "512MB" into bytes
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	var multiplier int64 = 1
	if strings.HasSuffix(s, "GB") {
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "GB")
	} else if strings.HasSuffix(s, "MB") {
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	} else if strings.HasSuffix(s, "KB") {
		multiplier = 1024
		s = strings.TrimSuffix(s, "KB")
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("no numeric value in size string")
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value: %w", err)
	}

	if n < 0 {
		return 0, fmt.Errorf("negative size not allowed")
	}

	return n * multiplier, nil
}
