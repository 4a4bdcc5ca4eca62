// If you are AI: This file validates configuration values and returns descriptive errors.

package config

import (
	"fmt"
	"math"
	"net"
	"strings"

	"bwstream/internal/core/profile"
)

// Validate checks that all configuration values are within acceptable ranges.
// Returns an error describing the first validation failure found.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Profile.Validate(); err != nil {
		return fmt.Errorf("profile config: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	seen := make(map[string]bool, len(c.Push))
	for i := range c.Push {
		p := &c.Push[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("push config %d: %w", i, err)
		}
		if seen[p.Name] {
			return fmt.Errorf("push config %d: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Validate checks server configuration values.
func (s *ServerConfig) Validate() error {
	ports := []struct {
		name string
		port int
	}{
		{"health_port", s.HealthPort},
		{"http_port", s.HTTPPort},
		{"ingest_port", s.IngestPort},
	}
	for i, p := range ports {
		if p.port <= 0 || p.port > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535, got %d", p.name, p.port)
		}
		for _, q := range ports[:i] {
			if p.port == q.port {
				return fmt.Errorf("%s and %s must be different, both are %d", q.name, p.name, p.port)
			}
		}
	}
	if !strings.HasPrefix(s.WSPath, "/") {
		return fmt.Errorf("ws_path must start with /, got %q", s.WSPath)
	}
	return nil
}

// Validate checks profile configuration values.
func (p *ProfileConfig) Validate() error {
	if p.Path == "" {
		return fmt.Errorf("path is required")
	}
	if math.IsNaN(p.DeclaredBandwidth) || p.DeclaredBandwidth < 0 {
		return fmt.Errorf("declared_bandwidth must be a non-negative number, got %g", p.DeclaredBandwidth)
	}
	return nil
}

// ValidateTable checks a loaded profile table: levels must be in ascending
// bandwidth order and every level must describe a usable stream.
func (p *ProfileConfig) ValidateTable(records []profile.Record[profile.StreamConfig]) error {
	if len(records) == 0 {
		return fmt.Errorf("%s: %w", p.Path, profile.ErrEmptyTable)
	}
	if err := profile.CheckOrder(records); err != nil {
		return fmt.Errorf("%s: %w", p.Path, err)
	}
	for i, r := range records {
		c := r.Config
		if c.Width <= 0 || c.Height <= 0 || c.FrameRate <= 0 || c.Bitrate <= 0 {
			return fmt.Errorf("%s: level %d: width, height, frame_rate and bitrate must be positive, got %s", p.Path, i, c)
		}
	}
	return nil
}

// Validate checks logger configuration values.
func (l *LogConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", l.Level)
	}
	if l.Format != "json" && l.Format != "console" {
		return fmt.Errorf("format must be json or console, got %q", l.Format)
	}
	return nil
}

// Validate checks one push task.
func (p *PushConfig) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, _, err := net.SplitHostPort(p.RemoteAddr); err != nil {
		return fmt.Errorf("remote_addr %q: %w", p.RemoteAddr, err)
	}
	if math.IsNaN(p.DeclaredBandwidth) || p.DeclaredBandwidth <= 0 {
		return fmt.Errorf("declared_bandwidth must be positive, got %g", p.DeclaredBandwidth)
	}
	if p.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %s", p.Duration)
	}
	return nil
}
