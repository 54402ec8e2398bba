// Package config loads logsift settings from a YAML file, LOGSIFT_* environment
// variables and command-line flags, in increasing order of priority.
//
// Sections:
//
//	server:   port, max_upload_mb, allowed_origins, rate_limit
//	analysis: profile
//	logging:  level, format, file, max_size_mb, max_backups, max_age_days, compress
//	store:    capacity
package config

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/atikulmunna/logsift/internal/logging"
)

// Config is the effective configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port"`
	MaxUploadMB    int      `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RateLimit      int      `mapstructure:"rate_limit" yaml:"rate_limit"` // per client IP per minute, 0 disables
}

type AnalysisConfig struct {
	Profile string `mapstructure:"profile" yaml:"profile"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

type StoreConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Port = 8080
	cfg.Server.MaxUploadMB = 4
	cfg.Server.AllowedOrigins = []string{}
	cfg.Server.RateLimit = 120

	cfg.Analysis.Profile = "generic"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 3
	cfg.Logging.MaxAgeDays = 28

	cfg.Store.Capacity = 100

	return cfg
}

// MaxUploadBytes is the request body limit derived from MaxUploadMB.
func (c ServerConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Options converts the section into logger options.
func (c LoggingConfig) Options() logging.Config {
	return logging.Config{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// Write dumps the configuration as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
