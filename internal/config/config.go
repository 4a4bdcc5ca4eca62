// If you are AI: This file defines the configuration structure for bwstream.
// It uses strict YAML decoding and explicit defaults.

package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete process configuration.
// All fields must have explicit defaults or be required.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Profile ProfileConfig `yaml:"profile"`
	Log     LogConfig     `yaml:"log"`
	Push    []PushConfig  `yaml:"push,omitempty"`
}

// ServerConfig defines listener settings.
type ServerConfig struct {
	HealthPort int    `yaml:"health_port"` // Port for the health endpoint
	HTTPPort   int    `yaml:"http_port"`   // Port for API, metrics and websocket ingest
	IngestPort int    `yaml:"ingest_port"` // Port for TCP datum ingest
	WSPath     string `yaml:"ws_path"`     // Websocket ingest route on the HTTP port
}

// ProfileConfig points at the bandwidth profile table.
type ProfileConfig struct {
	Path string `yaml:"path"` // Headerless CSV: bandwidth, width, height, frame_rate, bitrate, accuracy
	// DeclaredBandwidth selects the initial level when set; 0 keeps level 0.
	DeclaredBandwidth float64 `yaml:"declared_bandwidth,omitempty"`
}

// LogConfig defines the zap logger.
type LogConfig struct {
	Level       string   `yaml:"level"`  // debug, info, warn, error
	Format      string   `yaml:"format"` // json or console
	OutputPaths []string `yaml:"output_paths"`
}

// PushConfig defines one outbound stream.
type PushConfig struct {
	Name              string        `yaml:"name"`
	RemoteAddr        string        `yaml:"remote_addr"`        // host:port of an ingest server
	DeclaredBandwidth float64       `yaml:"declared_bandwidth"` // Bits per second available to this push
	Duration          time.Duration `yaml:"duration,omitempty"` // 0 runs until shutdown
	Reconnect         bool          `yaml:"reconnect,omitempty"`
}

// Load reads configuration from a YAML file.
// Returns an error if the file cannot be read or decoded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration from YAML bytes and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields

	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

// setDefaults applies explicit default values to unset fields.
func (c *Config) setDefaults() {
	if c.Server.HealthPort == 0 {
		c.Server.HealthPort = 8080
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8081
	}
	if c.Server.IngestPort == 0 {
		c.Server.IngestPort = 14566
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = "/ws/ingest"
	}
	if c.Profile.Path == "" {
		c.Profile.Path = "configs/profile.csv"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if len(c.Log.OutputPaths) == 0 {
		c.Log.OutputPaths = []string{"stdout"}
	}
}
