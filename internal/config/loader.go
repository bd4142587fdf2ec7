// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Parse HJSON to intermediate map
	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	// Convert to JSON and unmarshal to struct (for type safety)
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with default values applied.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// FindConfig searches for a config file in the current directory.
// It looks for dockhand.hjson first, then dockhand.json.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{
		"dockhand.hjson",
		"dockhand.json",
	}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for dockhand.hjson, dockhand.json)")
}

// ApplyDefaults sets default values for missing config fields.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4710
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}

	// Project defaults
	if cfg.Project.Marker == "" {
		cfg.Project.Marker = ".git"
	}

	// Port allocation defaults
	if cfg.Ports.Base == 0 {
		cfg.Ports.Base = 6969
	}

	// Dev-server defaults
	if cfg.DevServer.ReadinessTimeout == "" {
		cfg.DevServer.ReadinessTimeout = "30s"
	}
	if cfg.DevServer.StopTimeout == "" {
		cfg.DevServer.StopTimeout = "10s"
	}
	if cfg.DevServer.LogBufferSize == 0 {
		cfg.DevServer.LogBufferSize = 1000
	}

	// State defaults
	if cfg.State.File == "" {
		cfg.State.File = filepath.Join(".dockhand", "session.json")
	}

	// Terminal defaults
	if cfg.Terminal.Scrollback == 0 {
		cfg.Terminal.Scrollback = 256 * 1024
	}

	// Watch defaults
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = "100ms"
	}

	// Events defaults
	if cfg.Events.History.MaxEvents == 0 {
		cfg.Events.History.MaxEvents = 10000
	}
	if cfg.Events.History.MaxAge == "" {
		cfg.Events.History.MaxAge = "1h"
	}
}
