// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the axiomtrace configuration file.
//
// The file is YAML. Every field is optional: values missing from the file
// keep their defaults, and a missing file yields Default().
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxConfigFileSize bounds the config file (1MB).
	MaxConfigFileSize = 1024 * 1024

	// EnvConfigPath names the environment variable holding the config path.
	EnvConfigPath = "AXIOMTRACE_CONFIG"

	// DefaultFileName is the config file looked up under the user's
	// config directory.
	DefaultFileName = "axiomtrace.yaml"
)

// ErrInvalidConfig wraps decode and validation failures.
var ErrInvalidConfig = errors.New("invalid config")

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
}

// =============================================================================
// Types
// =============================================================================

// Config is the root of the configuration file.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
}

// EngineConfig tunes binding reconstruction.
type EngineConfig struct {
	// MaxHypotheses caps the live hypotheses per instantiation.
	MaxHypotheses int `yaml:"max_hypotheses" validate:"gte=1"`

	// FirstOnly stops each search at the first accepted hypothesis.
	FirstOnly bool `yaml:"first_only"`

	// Workers bounds concurrent instantiations. 0 means GOMAXPROCS.
	Workers int `yaml:"workers" validate:"gte=0"`

	OracleCacheSize int `yaml:"oracle_cache_size" validate:"gte=1"`
	ResultCacheSize int `yaml:"result_cache_size" validate:"gte=1"`
	MaxTerms        int `yaml:"max_terms" validate:"gte=1"`
}

// LoggingConfig selects the log level, format and optional log directory.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=auto json text"`
	Dir    string `yaml:"dir,omitempty"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" validate:"required"`
	Environment    string `yaml:"environment"`
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=otlp stdout none"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=prometheus stdout none"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
}

// StoreConfig locates the result store. InMemory ignores Path.
type StoreConfig struct {
	Path     string `yaml:"path" validate:"required_unless=InMemory true"`
	InMemory bool   `yaml:"in_memory"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`

	// RateLimit is requests per second across all clients. 0 disables it.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `yaml:"burst" validate:"gte=0"`

	MaxBodyBytes int64         `yaml:"max_body_bytes" validate:"gte=1"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`
}

// =============================================================================
// Defaults
// =============================================================================

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			MaxHypotheses:   4096,
			Workers:         0,
			OracleCacheSize: 8192,
			ResultCacheSize: 512,
			MaxTerms:        5_000_000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "axiomtrace",
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
			OTLPInsecure:   true,
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8088",
			RateLimit:    50,
			Burst:        100,
			MaxBodyBytes: 16 * 1024 * 1024,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 2 * time.Minute,
		},
	}
}

func defaultStorePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "axiomtrace", "results")
	}
	return filepath.Join(dir, "axiomtrace", "results")
}

// DefaultPath returns the config path: $AXIOMTRACE_CONFIG when set, else
// axiomtrace.yaml under the user's config directory.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(dir, "axiomtrace", DefaultFileName)
}

// =============================================================================
// Loading
// =============================================================================

// Load reads the config at path. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return cfg, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrInvalidConfig, path, info.Size(), MaxConfigFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes data over Default() and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%w: unmarshaling YAML: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// WriteDefault writes Default() to path, creating parent directories.
// An existing file is left untouched.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
