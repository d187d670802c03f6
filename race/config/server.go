package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gridrace/gridrace/race/engine"
)

// ServerConfig is the YAML server configuration. Every field has a default
// so an absent file yields a fully working local setup.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	DatabasePath string `yaml:"database_path"`
	TrackDir     string `yaml:"track_dir"`
	// RaceRetention caps stored races; older races are pruned after each
	// save. 0 disables pruning.
	RaceRetention int `yaml:"race_retention"`

	Defaults struct {
		EncodingMode string  `yaml:"encoding_mode"`
		Strategy     string  `yaml:"strategy"`
		Epsilon      float64 `yaml:"epsilon"`
		Temperature  float64 `yaml:"temperature"`
		DecayRate    float64 `yaml:"decay_rate"`
		MinEpsilon   float64 `yaml:"min_epsilon"`
	} `yaml:"defaults"`

	Rewards engine.RewardNumbers `yaml:"rewards"`
}

// DefaultServerConfig returns the configuration used when no file is given.
func DefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{
		Addr:          ":8080",
		DatabasePath:  "gridrace.db",
		TrackDir:      "tracks",
		RaceRetention: 500,
		Rewards:       engine.DefaultRewardNumbers(),
	}
	sel := engine.DefaultSelector()
	cfg.Defaults.EncodingMode = engine.EncodingExact.String()
	cfg.Defaults.Strategy = string(sel.Strategy)
	cfg.Defaults.Epsilon = sel.Epsilon
	cfg.Defaults.Temperature = sel.Temperature
	cfg.Defaults.DecayRate = sel.DecayRate
	cfg.Defaults.MinEpsilon = sel.MinEpsilon
	return cfg
}

// LoadServerConfig reads a YAML config file over the defaults. A missing
// path is not an error; the defaults come back untouched.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read server config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse server config: %w", err)
	}
	return cfg, nil
}

// Selector materializes the configured default selection policy.
func (c *ServerConfig) Selector() engine.Selector {
	return engine.Selector{
		Strategy:    engine.ParseStrategy(c.Defaults.Strategy),
		Epsilon:     c.Defaults.Epsilon,
		Temperature: c.Defaults.Temperature,
		DecayRate:   c.Defaults.DecayRate,
		MinEpsilon:  c.Defaults.MinEpsilon,
	}
}

// EncodingMode materializes the configured default encoding mode.
func (c *ServerConfig) EncodingMode() engine.EncodingMode {
	return engine.ParseEncodingMode(c.Defaults.EncodingMode)
}
