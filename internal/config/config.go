// Package config loads the YAML-configured server settings and supports
// an atomic hot-swap on SIGHUP so the hot path never blocks on a reload
// in progress.
package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the server reads at startup or reload.
type Config struct {
	Port             int    `yaml:"port"`
	WorkerProcesses  int    `yaml:"worker_processes"`
	Root             string `yaml:"root"`
	MaxConnections   int    `yaml:"max_connections"`
	KeepAliveTimeout int    `yaml:"keep_alive_timeout"`
	CacheTimeout     int    `yaml:"cache_timeout"`
	CacheSize        int    `yaml:"cache_size"`
	DevelopmentMode  bool   `yaml:"development_mode"`
	Log              string `yaml:"log"`
	MetricsPort      int    `yaml:"metrics_port"`
}

// Defaults returns the documented defaults for every key, used as the
// base a loaded file is merged onto. A missing config file is an error
// in Load; the defaults are not used on their own in that case.
func Defaults() *Config {
	return &Config{
		Port:             7877,
		WorkerProcesses:  4,
		Root:             "../static",
		MaxConnections:   10000,
		KeepAliveTimeout: 60,
		CacheTimeout:     3600,
		CacheSize:        10000,
		DevelopmentMode:  false,
		Log:              "./logs/access.log",
		MetricsPort:      9100,
	}
}

// Load reads path and overlays it onto Defaults(). yaml.Unmarshal only
// assigns keys present in the file, so a present key always wins, even
// when set to zero or to its own default (port: 0 replaces 7877 and is
// then rejected); an absent key never touches the default already in place.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config: invalid port %d", cfg.Port)
	}
	if cfg.WorkerProcesses <= 0 {
		return nil, fmt.Errorf("config: worker_processes must be positive")
	}
	return cfg, nil
}

// Store is an atomic.Pointer wrapper so SIGHUP can swap in a freshly
// loaded Config without any reader ever observing a half-written one.
type Store struct {
	path string
	ptr  atomic.Pointer[Config]
}

// NewStore loads path once and returns a Store ready for concurrent reads.
func NewStore(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.ptr.Store(cfg)
	return s, nil
}

// Get returns the currently active Config. Safe to call from any goroutine.
func (s *Store) Get() *Config {
	return s.ptr.Load()
}

// Reload re-reads the backing file and swaps it in atomically. On parse
// or validation failure the previously active Config is left in place
// and the error is returned to the caller to log.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	s.ptr.Store(cfg)
	return nil
}
