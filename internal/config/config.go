// Package config holds build metadata and the replayd.yaml configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Build metadata, overridden at link time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

// Config is the boot configuration read from replayd.yaml.
type Config struct {
	ListenAddr string `yaml:"listen_address"`
	Port       string `yaml:"port"`

	OutputDirectory string `yaml:"output_directory"`
	Enabled         bool   `yaml:"enabled"`

	// Buffer sizing: retained seconds × nominal rate = frame-count capacity.
	RetentionSeconds int `yaml:"retention_seconds"`
	VideoFPS         int `yaml:"video_fps"`
	AudioRate        int `yaml:"audio_rate"`

	// Monitoring scope. Empty active_group means "all capturable sources".
	ActiveGroup  string              `yaml:"active_group"`
	SourceGroups map[string][]string `yaml:"source_groups"`

	Simulate SimulateConfig `yaml:"simulate"`
}

// SimulateConfig runs replayd against the in-process host simulator instead
// of a real media pipeline.
type SimulateConfig struct {
	Enabled bool        `yaml:"enabled"`
	Sources []SimSource `yaml:"sources"`
}

// SimSource declares one simulated source.
type SimSource struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"` // "scene" or "input"
	Video bool   `yaml:"video"`
	Audio bool   `yaml:"audio"`
}

func (c *Config) setDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1"
	}
	if c.Port == "" {
		c.Port = "8090"
	}
	if c.RetentionSeconds <= 0 {
		c.RetentionSeconds = 30
	}
	if c.VideoFPS <= 0 {
		c.VideoFPS = 60
	}
	if c.AudioRate <= 0 {
		c.AudioRate = 50
	}
}

// Retention returns the retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionSeconds) * time.Second
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.setDefaults()

	return &cfg, nil
}
