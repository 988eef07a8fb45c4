// Package config loads the engine's YAML configuration with environment
// variable expansion, so secrets like the provider API key can live in the
// environment rather than the file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the engine configuration.
type Config struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"logLevel"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Provider struct {
		BaseURL        string `yaml:"baseUrl"`
		APIKey         string `yaml:"apiKey"`
		SessionTimeout int    `yaml:"sessionTimeoutSeconds"`
	} `yaml:"provider"`

	Run struct {
		TimeoutSeconds        int `yaml:"timeoutSeconds"`
		PinWaitSeconds        int `yaml:"pinWaitSeconds"`
		RecordingMaxAttempts  int `yaml:"recordingMaxAttempts"`
		RecordingIntervalMs   int `yaml:"recordingIntervalMs"`
		LogWindowSeconds      int `yaml:"logWindowSeconds"`
		ArtifactTimeoutSeconds int `yaml:"artifactTimeoutSeconds"`
	} `yaml:"run"`
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.Listen = ":8090"
	c.LogLevel = "info"
	c.Database.Path = "./data/crxforge.db"
	c.Provider.BaseURL = "https://api.browsers.example.com"
	c.Provider.SessionTimeout = 600
	c.Run.TimeoutSeconds = 300
	c.Run.PinWaitSeconds = 15
	c.Run.RecordingMaxAttempts = 30
	c.Run.RecordingIntervalMs = 1000
	c.Run.LogWindowSeconds = 60
	c.Run.ArtifactTimeoutSeconds = 120
	return c
}

// Load reads a YAML config file, expanding ${VAR} references from the
// environment before parsing. A missing path returns the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}
