package metrics

import "github.com/kilianp07/smartcharging/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// PrometheusPort exposes /metrics on its own listener when set. The HTTP
	// API serves /metrics as well.
	PrometheusPort string `json:"prometheus_port" yaml:"prometheus_port"`
}
