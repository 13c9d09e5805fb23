// Package config loads the session tuning file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseURL  string `yaml:"base_url"`
	Identity string `yaml:"identity"`
	VoiceURL string `yaml:"voice_url"`

	PollIntervalMs    int `yaml:"poll_interval_ms"`
	MoveIntervalMs    int `yaml:"move_interval_ms"`
	CarMoveIntervalMs int `yaml:"car_move_interval_ms"`
	HeartbeatMs       int `yaml:"heartbeat_ms"`
	TerrainRefreshMs  int `yaml:"terrain_refresh_ms"`

	TerrainSeed     int64 `yaml:"terrain_seed"`
	ViewRadiusTiles int   `yaml:"view_radius_tiles"`

	ConfigDir string `yaml:"config_dir"`
	RecordDir string `yaml:"record_dir"`
}

func Load(path string) (Config, error) {
	c := defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	if c.BaseURL == "" {
		return c, fmt.Errorf("config: base_url is required")
	}
	if c.Identity == "" {
		return c, fmt.Errorf("config: identity is required")
	}
	return c, nil
}

func defaults() Config {
	return Config{
		PollIntervalMs:    2000,
		MoveIntervalMs:    80,
		CarMoveIntervalMs: 40,
		HeartbeatMs:       10000,
		TerrainRefreshMs:  5000,
		TerrainSeed:       1337,
		ViewRadiusTiles:   3,
		ConfigDir:         "./configs",
	}
}

func (c Config) PollInterval() time.Duration { return ms(c.PollIntervalMs) }

func (c Config) MoveInterval() time.Duration { return ms(c.MoveIntervalMs) }

func (c Config) CarMoveInterval() time.Duration { return ms(c.CarMoveIntervalMs) }

func (c Config) Heartbeat() time.Duration { return ms(c.HeartbeatMs) }

func (c Config) TerrainRefresh() time.Duration { return ms(c.TerrainRefreshMs) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
