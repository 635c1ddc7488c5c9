// Package config loads store configuration from YAML, the way the
// broader codebase's engine configuration is loaded: a typed struct
// with documented defaults, overridden field-by-field by whatever the
// file supplies.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StoreConfig holds the on-disk layout and segment sizing knobs for a
// single store (spec §2.3, §6.1).
type StoreConfig struct {
	Directory           string `yaml:"directory"`
	KeySizeBytes        int    `yaml:"key_size_bytes"`
	MaxFileSizeBytes    int64  `yaml:"max_file_size_bytes"`
	HandleCacheCapacity int    `yaml:"handle_cache_capacity"`
	Standalone          bool   `yaml:"standalone"`
	HashAlgorithm       string `yaml:"hash_algorithm"` // currently only "blake2b-256"
}

// SyncConfig describes how aggressively commit should force data to
// stable storage. It is loaded but not read by the store or the bench
// command: Commit always fsyncs.
type SyncConfig struct {
	Mode string `yaml:"mode"` // "always", "interval", "never"
	// Interval is parsed with ParseDuration when Mode == "interval".
	Interval string `yaml:"interval"`
}

// CompressionConfig selects the codec used for leaf value payloads.
// Node slots are always fixed-width and are never compressed.
type CompressionConfig struct {
	Algorithm string `yaml:"algorithm"` // "none", "snappy", "lz4"
}

// LoggingConfig mirrors the rest of the codebase's logging knobs.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Output string `yaml:"output"` // "stdout", "file", "none"
	File   string `yaml:"file"`
}

// TracingConfig describes OpenTelemetry span export for store
// operations. It is loaded but not read by the store or the bench
// command; no exporter is configured from it.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // "grpc" or "http"
}

// DebugConfig describes the optional read-only debug/admin service. It
// is loaded but not read by the bench command, which starts no debug
// service from it.
type DebugConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	StatsvizPath  string `yaml:"statsviz_path"` // empty disables statsviz
}

// Config is the top-level store configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store"`
	Sync        SyncConfig        `yaml:"sync"`
	Compression CompressionConfig `yaml:"compression"`
	Logging     LoggingConfig     `yaml:"logging"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Debug       DebugConfig       `yaml:"debug"`
}

// ParseDuration parses durationStr, falling back to defaultDuration
// (and logging a warning) if it is empty or malformed.
func ParseDuration(durationStr string, defaultDuration time.Duration, logger *slog.Logger) time.Duration {
	if durationStr == "" || durationStr == "0" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		if logger != nil {
			logger.Warn("invalid duration format, using default", "input", durationStr, "default", defaultDuration.String(), "error", err)
		}
		return defaultDuration
	}
	return d
}

func defaults() *Config {
	return &Config{
		Store: StoreConfig{
			Directory:           "./data",
			KeySizeBytes:        32,
			MaxFileSizeBytes:    64 * 1024 * 1024, // 64 MiB
			HandleCacheCapacity: 32,
			Standalone:          true,
			HashAlgorithm:       "blake2b-256",
		},
		Sync: SyncConfig{
			Mode:     "interval",
			Interval: "1000ms",
		},
		Compression: CompressionConfig{
			Algorithm: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			File:   "urkelstore.log",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Endpoint: "localhost:4317",
			Protocol: "grpc",
		},
		Debug: DebugConfig{
			Enabled:       false,
			ListenAddress: "127.0.0.1:6060",
			StatsvizPath:  "",
		},
	}
}

// Load reads configuration from r, applying defaults first and then
// overriding field-by-field with whatever r supplies. A nil or empty
// reader yields the defaults unchanged.
func Load(r io.Reader) (*Config, error) {
	cfg := defaults()
	if r == nil {
		return cfg, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path, returning
// defaults if the file does not exist.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(nil)
		}
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()
	return Load(file)
}
