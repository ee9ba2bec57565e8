package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/smartcharging/core/factory"
	"github.com/kilianp07/smartcharging/core/metrics"
	"github.com/kilianp07/smartcharging/core/station"
	"github.com/kilianp07/smartcharging/infra/kafka"
	"github.com/kilianp07/smartcharging/infra/monitoring"
	"github.com/kilianp07/smartcharging/infra/mqtt"
)

type Config struct {
	Station    station.Config          `json:"station"`
	Store      factory.ModuleConfig    `json:"store"`
	Metrics    metrics.Config          `json:"metrics"`
	Publishers []factory.ModuleConfig  `json:"publishers"`
	MQTT       mqtt.Config             `json:"mqtt"`
	Kafka      kafka.Config            `json:"kafka"`
	HTTP       HTTPConfig              `json:"http"`
	Recompute  RecomputeConfig         `json:"recompute"`
	Logging    LoggingConfig           `json:"logging"`
	Sentry     monitoring.SentryConfig `json:"sentry"`
}

// Load reads the file at path, applies K_ environment overrides, fills
// defaults and validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Station.SetDefaults()
	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}
	if c.MQTT.Enabled() {
		c.MQTT.SetDefaults()
	}
	if len(c.Kafka.Brokers) > 0 {
		c.Kafka.SetDefaults()
	}
	c.HTTP.SetDefaults()
	c.Recompute.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section and the publisher wiring.
func (c Config) Validate() error {
	if err := c.Station.Validate(); err != nil {
		return fmt.Errorf("station: %w", err)
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if len(c.Kafka.Brokers) > 0 {
		if err := c.Kafka.Validate(); err != nil {
			return err
		}
	}
	for _, p := range c.Publishers {
		if p.Type == "mqtt" && !c.MQTT.Enabled() {
			return fmt.Errorf("publishers: mqtt requires mqtt.broker")
		}
	}
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if err := c.Recompute.Validate(); err != nil {
		return err
	}
	if c.Sentry.TracesSampleRate < 0 || c.Sentry.TracesSampleRate > 1 {
		return fmt.Errorf("sentry: traces_sample_rate must be within 0..1")
	}
	return c.Logging.Validate()
}
