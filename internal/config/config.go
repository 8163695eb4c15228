// Package config owns daemon configuration loading.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	NodeID        string              `toml:"node_id"`
	Reliable      ReliableConfig      `toml:"reliable"`
	Lossy         LossyConfig         `toml:"lossy"`
	Serializer    SerializerConfig    `toml:"serializer"`
	Observability ObservabilityConfig `toml:"observability"`
}

type ReliableConfig struct {
	Addr                string `toml:"addr"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

type LossyConfig struct {
	Addr      string  `toml:"addr"`
	MaxPacket int     `toml:"max_packet"`
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
}

type SerializerConfig struct {
	QueueSize int `toml:"queue_size"`
}

type ObservabilityConfig struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

// Default returns the zero-config runtime configuration.
func Default() Config {
	return Config{
		NodeID: "hostwire.local",
		Reliable: ReliableConfig{
			Addr:                ":9000",
			ReadTimeoutSeconds:  300,
			WriteTimeoutSeconds: 10,
		},
		Lossy: LossyConfig{
			Addr:      ":9001",
			MaxPacket: 64 * 1024,
		},
		Serializer: SerializerConfig{
			QueueSize: 256,
		},
		Observability: ObservabilityConfig{
			Addr: ":9090",
		},
	}
}

// Load reads and validates one TOML config file, filling defaults for
// omitted fields.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if strings.TrimSpace(cfg.NodeID) == "" {
		cfg.NodeID = def.NodeID
	}
	if strings.TrimSpace(cfg.Reliable.Addr) == "" {
		cfg.Reliable.Addr = def.Reliable.Addr
	}
	if cfg.Reliable.ReadTimeoutSeconds <= 0 {
		cfg.Reliable.ReadTimeoutSeconds = def.Reliable.ReadTimeoutSeconds
	}
	if cfg.Reliable.WriteTimeoutSeconds <= 0 {
		cfg.Reliable.WriteTimeoutSeconds = def.Reliable.WriteTimeoutSeconds
	}
	if strings.TrimSpace(cfg.Lossy.Addr) == "" {
		cfg.Lossy.Addr = def.Lossy.Addr
	}
	if cfg.Lossy.MaxPacket <= 0 {
		cfg.Lossy.MaxPacket = def.Lossy.MaxPacket
	}
	if cfg.Serializer.QueueSize <= 0 {
		cfg.Serializer.QueueSize = def.Serializer.QueueSize
	}
	if strings.TrimSpace(cfg.Observability.Addr) == "" {
		cfg.Observability.Addr = def.Observability.Addr
	}
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return fmt.Errorf("config missing node_id")
	}
	if strings.TrimSpace(cfg.Reliable.Addr) == "" {
		return fmt.Errorf("config missing reliable addr")
	}
	if strings.TrimSpace(cfg.Lossy.Addr) == "" {
		return fmt.Errorf("config missing lossy addr")
	}
	if cfg.Lossy.RateLimit < 0 {
		return fmt.Errorf("config lossy rate_limit must be >= 0")
	}
	return nil
}
