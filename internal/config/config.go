// Package config provides configuration loading and validation for objctl.
// Supports YAML and TOML files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/dray-io/objaccess/internal/compress"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "OBJACCESS_CONFIG"

// Backend names accepted in ObjectStoreConfig.Backend.
const (
	BackendS3     = "s3"
	BackendOSS    = "oss"
	BackendMemory = "memory"
)

// Config holds all configuration for the object writer tooling.
type Config struct {
	ObjectStore   ObjectStoreConfig   `yaml:"objectStore" toml:"objectStore"`
	Writer        WriterConfig        `yaml:"writer" toml:"writer"`
	Observability ObservabilityConfig `yaml:"observability" toml:"observability"`
}

type ObjectStoreConfig struct {
	Backend      string `yaml:"backend" toml:"backend" env:"OBJACCESS_BACKEND"`
	Endpoint     string `yaml:"endpoint" toml:"endpoint" env:"OBJACCESS_ENDPOINT"`
	Bucket       string `yaml:"bucket" toml:"bucket" env:"OBJACCESS_BUCKET"`
	Region       string `yaml:"region" toml:"region" env:"OBJACCESS_REGION"`
	AccessKey    string `yaml:"accessKey" toml:"accessKey" env:"OBJACCESS_ACCESS_KEY"`
	SecretKey    string `yaml:"secretKey" toml:"secretKey" env:"OBJACCESS_SECRET_KEY"`
	UsePathStyle bool   `yaml:"usePathStyle" toml:"usePathStyle" env:"OBJACCESS_USE_PATH_STYLE"`
	MaxAttempts  int    `yaml:"maxAttempts" toml:"maxAttempts" env:"OBJACCESS_MAX_ATTEMPTS"`
}

type WriterConfig struct {
	// ChunkSize is the size of every appended block but the last, e.g. "4MiB".
	ChunkSize   string `yaml:"chunkSize" toml:"chunkSize" env:"OBJACCESS_CHUNK_SIZE"`
	Compression string `yaml:"compression" toml:"compression" env:"OBJACCESS_COMPRESSION"`
	ContentType string `yaml:"contentType" toml:"contentType" env:"OBJACCESS_CONTENT_TYPE"`
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" toml:"metricsAddr" env:"OBJACCESS_METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" toml:"logLevel" env:"OBJACCESS_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" toml:"logFormat" env:"OBJACCESS_LOG_FORMAT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		ObjectStore: ObjectStoreConfig{
			Backend: BackendMemory,
			Region:  "us-east-1",
		},
		Writer: WriterConfig{
			ChunkSize:   "8MiB",
			Compression: string(compress.None),
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load reads the file named by OBJACCESS_CONFIG, or starts from the defaults
// when it is unset, then applies environment overrides.
func Load() (*Config, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return LoadFromPath(path)
	}
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads a YAML (.yaml, .yml) or TOML (.toml) file over the
// defaults, then applies environment overrides.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config: unsupported file extension %q", filepath.Ext(path))
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overwrites every field whose env tag names a set variable.
func (c *Config) applyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// ChunkSizeBytes parses Writer.ChunkSize ("4MiB", "512KB", "1048576").
func (c *Config) ChunkSizeBytes() (int, error) {
	n, err := humanize.ParseBytes(c.Writer.ChunkSize)
	if err != nil {
		return 0, fmt.Errorf("config: chunkSize: %w", err)
	}
	if n == 0 || n > 5<<30 {
		return 0, fmt.Errorf("config: chunkSize %q out of range", c.Writer.ChunkSize)
	}
	return int(n), nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.ObjectStore.Backend {
	case BackendMemory:
	case BackendS3, BackendOSS:
		if c.ObjectStore.Bucket == "" {
			return fmt.Errorf("config: objectStore.bucket is required for backend %q", c.ObjectStore.Backend)
		}
		if c.ObjectStore.Backend == BackendOSS && c.ObjectStore.Endpoint == "" {
			return fmt.Errorf("config: objectStore.endpoint is required for backend %q", BackendOSS)
		}
	default:
		return fmt.Errorf("config: unknown objectStore.backend %q", c.ObjectStore.Backend)
	}
	if c.ObjectStore.MaxAttempts < 0 {
		return fmt.Errorf("config: objectStore.maxAttempts must not be negative")
	}
	if _, err := c.ChunkSizeBytes(); err != nil {
		return err
	}
	if _, err := compress.ParseCodec(c.Writer.Compression); err != nil {
		return fmt.Errorf("config: writer.compression: %w", err)
	}
	return nil
}
