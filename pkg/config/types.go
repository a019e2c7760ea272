package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent chora configuration stored as config.toml
// in the .chora/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Pulse       PulseConfig       `toml:"pulse"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Keyring     KeyringConfig     `toml:"keyring"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Persona     PersonaConfig     `toml:"persona"`
}

// StorageConfig holds the graph store settings.
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// PulseConfig holds the background pulse loop settings.
type PulseConfig struct {
	Enabled         bool `toml:"enabled"`
	IntervalSeconds uint `toml:"interval_seconds,omitempty"`
	SignalLimit     uint `toml:"signal_limit,omitempty"`
}

// EmbeddingConfig holds embedding provider settings for the semantic layer.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// KeyringConfig holds the location of the circle keyring file.
type KeyringConfig struct {
	Path string `toml:"path,omitempty"`
}

// EventStreamConfig holds sync-bridge publisher settings. Provider "nop"
// keeps changes local; "kafka" ships them to the configured brokers.
type EventStreamConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// PersonaConfig identifies the acting persona for focus and signal ownership.
type PersonaConfig struct {
	ID string `toml:"id,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"pulse.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Pulse.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean for pulse.enabled: %q", v)
			}
			c.Pulse.Enabled = b
			return nil
		},
	},
	"pulse.interval_seconds": {
		get: func(c *Config) string { return strconv.FormatUint(uint64(c.Pulse.IntervalSeconds), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for pulse.interval_seconds: %q", v)
			}
			c.Pulse.IntervalSeconds = uint(n)
			return nil
		},
	},
	"pulse.signal_limit": {
		get: func(c *Config) string { return strconv.FormatUint(uint64(c.Pulse.SignalLimit), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for pulse.signal_limit: %q", v)
			}
			c.Pulse.SignalLimit = uint(n)
			return nil
		},
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string { return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %q", v)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"keyring.path": {
		get: func(c *Config) string { return c.Keyring.Path },
		set: func(c *Config, v string) error { c.Keyring.Path = v; return nil },
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error { c.EventStream.Provider = v; return nil },
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.EventStream.Brokers = splitNonEmpty(v)
			return nil
		},
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
	"persona.id": {
		get: func(c *Config) string { return c.Persona.ID },
		set: func(c *Config, v string) error { c.Persona.ID = v; return nil },
	},
}

// splitNonEmpty splits a comma-separated list, trimming whitespace and
// dropping empty segments.
func splitNonEmpty(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
