package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the birdwatch CLI.
//
// ServerEndpointAddr is the base URL of the remote service; the live chat
// channel is derived from it. DataDir holds the local store. A non-empty
// Username replaces the recorded username at startup.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	DataDir             string
	Username            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.OnlineCheckInterval = 3 * time.Second
	c.DataDir = defaultDataDir()
	c.Username = ""
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "birdwatch")
	}
	return ".birdwatch"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

// StorePath is the SQLite file of the primary local tier.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "birdwatch.db")
}

// FallbackDir is the badger directory of the fallback local tier.
func (c *Config) FallbackDir() string {
	return filepath.Join(c.DataDir, "fallback")
}

// LogPath is where the CLI writes its logs, away from the prompt.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "birdwatch.log")
}
