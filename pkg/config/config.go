// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the dockyard server configuration.
//
// Values are layered: built-in defaults, then an optional TOML or YAML file,
// then DOCKYARD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override, for example
// DOCKYARD_STORAGE_ROOT_DIR.
const EnvPrefix = "DOCKYARD"

// Storage drivers.
const (
	DriverFilesystem = "filesystem"
	DriverContainerd = "containerd"
)

// Config holds all server configuration.
type Config struct {
	Addr            string        `toml:"addr" yaml:"addr"`
	ReadOnly        bool          `toml:"read_only" yaml:"read_only" split_words:"true"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout" split_words:"true"`

	Storage   StorageConfig   `toml:"storage" yaml:"storage"`
	TSNet     TSNetConfig     `toml:"tsnet" yaml:"tsnet"`
	Log       LogConfig       `toml:"log" yaml:"log"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit" split_words:"true"`
	Metrics   MetricsConfig   `toml:"metrics" yaml:"metrics"`
}

// StorageConfig selects and configures the manifest store.
type StorageConfig struct {
	Driver string `toml:"driver" yaml:"driver"`

	// filesystem
	RootDir string `toml:"root_dir" yaml:"root_dir" split_words:"true"`

	// containerd
	ContainerdSocket string `toml:"containerd_socket" yaml:"containerd_socket" split_words:"true"`
	Namespace        string `toml:"namespace" yaml:"namespace"`
	ImagePrefix      string `toml:"image_prefix" yaml:"image_prefix" split_words:"true"`
}

// TSNetConfig configures the optional tailnet listener. It is disabled
// when Hostname is empty.
type TSNetConfig struct {
	Hostname string `toml:"hostname" yaml:"hostname"`
	Dir      string `toml:"dir" yaml:"dir"`
	AuthKey  string `toml:"auth_key" yaml:"auth_key" split_words:"true"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `toml:"level" yaml:"level"`
	Development bool   `toml:"development" yaml:"development"`
}

// RateLimitConfig configures per-client rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second" split_words:"true"`
	Burst             int     `toml:"burst" yaml:"burst"`
}

// MetricsConfig configures the Prometheus listener. It is disabled when
// Addr is empty.
type MetricsConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:            ":5000",
		ShutdownTimeout: 10 * time.Second,
		Storage: StorageConfig{
			Driver:           DriverFilesystem,
			RootDir:          "/var/lib/dockyard",
			ContainerdSocket: "/run/containerd/containerd.sock",
			Namespace:        "default",
			ImagePrefix:      "dockyard",
		},
		Log: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
		},
	}
}

// Load builds the configuration from defaults, the file at path (if not
// empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ErrUnknownFormat is returned for config files that are neither TOML nor
// YAML.
var ErrUnknownFormat = errors.New("unknown config file format")

func (c *Config) loadFile(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.DecodeFile(path, c)
		if err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			return fmt.Errorf("decode %s: unknown keys %v", path, undec)
		}
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	return nil
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr is empty", ErrInvalid)
	}
	switch c.Storage.Driver {
	case DriverFilesystem:
		if c.Storage.RootDir == "" {
			return fmt.Errorf("%w: storage.root_dir is required for the filesystem driver", ErrInvalid)
		}
	case DriverContainerd:
		if c.Storage.ContainerdSocket == "" || c.Storage.Namespace == "" {
			return fmt.Errorf("%w: storage.containerd_socket and storage.namespace are required for the containerd driver", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalid, c.Storage.Driver)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("%w: rate_limit needs positive requests_per_second and burst", ErrInvalid)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: shutdown_timeout is negative", ErrInvalid)
	}
	return nil
}
