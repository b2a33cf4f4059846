package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Game   GameConfig   `yaml:"game"`
	Battle BattleConfig `yaml:"battle"`
}

type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

// GameConfig covers the knobs shared by every mode.
type GameConfig struct {
	ReadySeconds int `yaml:"ready_seconds"` // lobby readiness fallback
	GraceMinutes int `yaml:"grace_minutes"` // empty-room teardown window
}

type BattleConfig struct {
	Rounds           int `yaml:"rounds"`
	RoundSeconds     int `yaml:"round_seconds"`
	CountdownSeconds int `yaml:"countdown_seconds"`
}

func (c *GameConfig) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadySeconds) * time.Second
}

func (c *GameConfig) GraceWindow() time.Duration {
	return time.Duration(c.GraceMinutes) * time.Minute
}

func (c *BattleConfig) RoundDuration() time.Duration {
	return time.Duration(c.RoundSeconds) * time.Second
}

func (c *BattleConfig) Countdown() time.Duration {
	return time.Duration(c.CountdownSeconds) * time.Second
}

// Load reads a YAML config file and fills in defaults for anything unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "public"
	}
	if c.Game.ReadySeconds == 0 {
		c.Game.ReadySeconds = 30
	}
	if c.Game.GraceMinutes == 0 {
		c.Game.GraceMinutes = 60
	}
	if c.Battle.Rounds == 0 {
		c.Battle.Rounds = 10
	}
	if c.Battle.RoundSeconds == 0 {
		c.Battle.RoundSeconds = 20
	}
	if c.Battle.CountdownSeconds == 0 {
		c.Battle.CountdownSeconds = 5
	}
}

// ApplyEnv overlays HOST and PORT from the environment, which is how the
// hosting platform hands us the listen address.
func (c *Config) ApplyEnv() {
	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
}
