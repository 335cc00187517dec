// Package config loads the service configuration from YAML with
// environment overrides for deployment-sensitive values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all arbiter configuration.
type Config struct {
	// Mode selects analyzer strictness: rbc, arbiter, or lint.
	Mode string `yaml:"mode"`

	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	Resonance ResonanceConfig `yaml:"resonance"`
	Integrity IntegrityConfig `yaml:"integrity"`
	Rules     RulesConfig     `yaml:"rules"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig configures the SQLite persistence layer.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ResonanceConfig tunes the resonance engine and promotion gate.
type ResonanceConfig struct {
	SpineLimit          int     `yaml:"spine_limit"`
	ShelveThreshold     float64 `yaml:"shelve_threshold"`
	PromoteCoherenceMin float64 `yaml:"promote_coherence_min"`
}

// IntegrityConfig tunes the session pause gate.
type IntegrityConfig struct {
	PauseThreshold float64 `yaml:"pause_threshold"`
}

// RulesConfig points at an optional pattern overlay file.
type RulesConfig struct {
	OverlayPath string `yaml:"overlay_path"`
	Watch       bool   `yaml:"watch"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mode:   "rbc",
		Store:  StoreConfig{Path: "arbiter.db"},
		Server: ServerConfig{Addr: ":8787"},
		Resonance: ResonanceConfig{
			SpineLimit:          5,
			ShelveThreshold:     0.7,
			PromoteCoherenceMin: 0.8,
		},
		Integrity: IntegrityConfig{PauseThreshold: 0.999},
	}
}

// Load reads the config at path over the defaults, then applies
// environment overrides. An empty path yields defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// Environment overrides, highest precedence.
func (c *Config) applyEnv() {
	if v := os.Getenv("ARBITER_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("ARBITER_DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("ARBITER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("ARBITER_PAUSE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Integrity.PauseThreshold = f
		}
	}
	if v := os.Getenv("ARBITER_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.Verbose = b
		}
	}
}
