package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `station:
  id: "cs-42"
  outlets:
    - id: 1
      phase_type: AC
      connectors: 2
    - id: 2
      phase_type: DC
  supported_rate_units: "W"
  coalesce_tolerance_seconds: 0
  ignored_purposes_offline: ["ChargingStationExternalConstraints"]
store:
  type: sqlite
  conf:
    path: /var/lib/smartcharging/profiles.db
metrics:
  sinks:
    - type: prometheus
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  topic_prefix: "site"
  qos:
    schedule: 1
kafka:
  brokers: ["localhost:9092"]
publishers:
  - type: mqtt
  - type: kafka
recompute:
  interval_seconds: 30
logging:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cs-42", cfg.Station.ID)
	require.Len(t, cfg.Station.Outlets, 2)
	assert.Equal(t, "DC", cfg.Station.Outlets[1].PhaseType)
	assert.Equal(t, 2, cfg.Station.Outlets[0].Connectors)
	require.NotNil(t, cfg.Station.CoalesceToleranceSeconds)
	assert.Equal(t, 0, *cfg.Station.CoalesceToleranceSeconds)
	assert.Equal(t, 48.0, cfg.Station.DefaultLimitAmps)

	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, "/var/lib/smartcharging/profiles.db", cfg.Store.Conf["path"])
	assert.Equal(t, "prometheus", cfg.Metrics.Sinks[0].Type)
	assert.Equal(t, "site", cfg.MQTT.TopicPrefix)
	assert.Equal(t, byte(1), cfg.MQTT.QoS["schedule"])
	assert.Equal(t, "composite-schedules", cfg.Kafka.Topic)
	assert.Len(t, cfg.Publishers, 2)

	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, 30*time.Second, cfg.Recompute.Interval())
	assert.Equal(t, 24*time.Hour, cfg.Recompute.Horizon())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", `{}`))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Len(t, cfg.Station.Outlets, 1)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.MQTT.Enabled())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("K_HTTP__ADDRESS", ":9999")
	t.Setenv("K_STATION__NOMINAL_VOLTAGE", "400")
	cfg, err := Load(writeConfig(t, "config.yaml", "http:\n  address: \":8080\"\n"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.Address)
	assert.Equal(t, 400.0, cfg.Station.NominalVoltage)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", ""))
	assert.ErrorContains(t, err, "unsupported config format")

	_, err = Load(writeConfig(t, "config.yaml", "publishers:\n  - type: mqtt\n"))
	assert.ErrorContains(t, err, "mqtt requires")

	_, err = Load(writeConfig(t, "config.yaml", "logging:\n  level: chatty\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "config.yaml", "recompute:\n  unit: kW\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "config.yaml", "station:\n  outlets:\n    - id: 2\n"))
	assert.ErrorContains(t, err, "station")

	_, err = Load(writeConfig(t, "config.yaml", "sentry:\n  dsn: https://k@example.com/1\n  traces_sample_rate: 2\n"))
	assert.ErrorContains(t, err, "traces_sample_rate")
}

func TestLoadLoggingFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", "logging:\n  file: /var/log/smartcharging.log\n  max_backups: 10\n"))
	require.NoError(t, err)
	assert.Equal(t, "/var/log/smartcharging.log", cfg.Logging.File)
	assert.Equal(t, 50, cfg.Logging.MaxSizeMB)
	assert.Equal(t, 10, cfg.Logging.MaxBackups)
	assert.Equal(t, 7, cfg.Logging.MaxAgeDays)

	cfg, err = Load(writeConfig(t, "config.yaml", "sentry:\n  dsn: https://k@example.com/1\n  environment: staging\n"))
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Sentry.Environment)
	assert.Zero(t, cfg.Logging.MaxSizeMB)
}
