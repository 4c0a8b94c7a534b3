// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config provides configuration management for a TSP node: its own
// VID material, the endpoint it listens on, known peers, and the ambient
// logging/metrics/health surface.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level node configuration.
type Config struct {
	Environment string         `yaml:"environment" json:"environment"`
	Identity    IdentityConfig `yaml:"identity" json:"identity"`
	Listen      ListenConfig   `yaml:"listen" json:"listen"`
	Peers       []PeerConfig   `yaml:"peers" json:"peers"`
	Logging     LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig  `yaml:"metrics" json:"metrics"`
	Health      HealthConfig   `yaml:"health" json:"health"`
}

// IdentityConfig locates the node's own VID material on disk.
type IdentityConfig struct {
	// OwnedVidPath points at a JSON file holding the node's vid.OwnedVid
	// keys, produced by the CLI's "bind" subcommand.
	OwnedVidPath string `yaml:"owned_vid_path" json:"owned_vid_path"`
	// ParentVid names the parent VID of this identity. It is read from the
	// file and from TSP_PARENT_VID; no command applies it to the store.
	ParentVid string `yaml:"parent_vid,omitempty" json:"parent_vid,omitempty"`
}

// ListenConfig describes the transport endpoint a node accepts inbound
// envelopes on.
type ListenConfig struct {
	// Scheme names a transport.Transport driver scheme: "tcp", "http",
	// "https", "ws", or "wss"; Validate rejects any other value. No command
	// reads ListenConfig: tsp listen subscribes to the owned VID's endpoint.
	Scheme string `yaml:"scheme" json:"scheme"`
	Addr   string `yaml:"addr" json:"addr"`
}

// PeerConfig is a known counterparty VID, resolved once at startup and
// cached in the store rather than re-resolved on every send.
type PeerConfig struct {
	Vid      string `yaml:"vid" json:"vid"`
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig controls the health check HTTP surface.
type HealthConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Addr    string        `yaml:"addr" json:"addr"`
	Path    string        `yaml:"path" json:"path"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// LoadFromFile loads configuration from a YAML or JSON file, detected by
// trying YAML first and falling back to JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile saves configuration to a file, choosing JSON for a ".json"
// extension and YAML otherwise.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Identity.OwnedVidPath == "" {
		cfg.Identity.OwnedVidPath = "vid.json"
	}
	if cfg.Listen.Scheme == "" {
		cfg.Listen.Scheme = "tcp"
	}
	if cfg.Listen.Addr == "" {
		cfg.Listen.Addr = ":8420"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9420"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Health.Addr == "" {
		cfg.Health.Addr = ":9421"
	}
	if cfg.Health.Path == "" {
		cfg.Health.Path = "/healthz"
	}
	if cfg.Health.Timeout == 0 {
		cfg.Health.Timeout = 5 * time.Second
	}
}

// ValidationIssue is one configuration problem found by Validate. Level
// "error" blocks Load; "warn" is surfaced but non-fatal.
type ValidationIssue struct {
	Field   string
	Message string
	Level   string
}

// Validate checks a loaded configuration for obvious misconfiguration.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Identity.OwnedVidPath == "" {
		issues = append(issues, ValidationIssue{
			Field: "identity.owned_vid_path", Message: "must not be empty", Level: "error",
		})
	}
	switch cfg.Listen.Scheme {
	case "tcp", "http", "https", "ws", "wss":
	default:
		issues = append(issues, ValidationIssue{
			Field: "listen.scheme", Message: "unrecognized transport scheme: " + cfg.Listen.Scheme, Level: "error",
		})
	}
	for i, p := range cfg.Peers {
		if p.Vid == "" {
			issues = append(issues, ValidationIssue{
				Field: fmt.Sprintf("peers[%d].vid", i), Message: "must not be empty", Level: "error",
			})
		}
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		issues = append(issues, ValidationIssue{
			Field: "logging.level", Message: "unrecognized level: " + cfg.Logging.Level, Level: "warn",
		})
	}
	return issues
}
