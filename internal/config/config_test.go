package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleConfig = `
log_level: debug
port: 9090
victron_modbus_tcp:
  host: 192.168.1.20
  vebus_unit_id: 246
battery:
  capacity_kwh: 9.6
dispatch:
  poll_interval_millis: 5000
  phase: l2
  dry_run: true
  timezone: UTC
tariff:
  file: /etc/smartess/tariff.yaml
mqtt:
  enabled: true
  host: broker
  base_topic: My_ESS
  username: user
  password: secret
`

func TestLoadConfig(t *testing.T) {
	require := require.New(t)
	t.Setenv("CONFIG_FILE", writeFile(t, "config.yaml", sampleConfig))
	t.Setenv("PORT", "")
	t.Setenv("SMARTESS_PORT", "")

	cfg, err := Load(viper.New())
	require.NoError(err)

	require.Equal(zap.DebugLevel, cfg.LogLevel)
	require.Equal(uint(9090), cfg.Port)
	require.Equal("192.168.1.20", cfg.VictronModbusTcp.Host)
	require.Equal(uint(502), cfg.VictronModbusTcp.Port)
	require.Equal(uint(246), cfg.VictronModbusTcp.VEBusUnitId)
	require.Equal(uint(225), cfg.VictronModbusTcp.BatteryUnitId)
	require.Equal(time.Second, cfg.VictronModbusTcp.Timeout())
	require.Equal(9.6, cfg.Battery.CapacityKWh)
	require.Equal(5*time.Second, cfg.Dispatch.PollInterval())
	require.Equal(32000.0, cfg.Dispatch.MaxGridImportWatt)
	require.Equal(int16(50), cfg.Dispatch.MinSetPointWatt)
	require.True(cfg.Dispatch.DryRun)
	require.Equal("my_ess", cfg.MQTT.BaseTopic)
	require.Equal("/etc/smartess/tariff.yaml", cfg.Tariff.File)

	loc, err := cfg.Dispatch.Location()
	require.NoError(err)
	require.Equal(time.UTC, loc)

	redacted := cfg.Redacted()
	require.Equal("*redacted*", redacted.MQTT.Password)
	require.Equal("secret", cfg.MQTT.Password)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SMARTESS_PORT", "")
	t.Setenv("PORT", "8181")
	t.Setenv("SMARTESS_VICTRON_MODBUS_TCP_HOST", "venus.local")
	t.Setenv("SMARTESS_BATTERY_CAPACITY_KWH", "5")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, uint(8181), cfg.Port)
	assert.Equal(t, "venus.local", cfg.VictronModbusTcp.Host)
	assert.Equal(t, 5.0, cfg.Battery.CapacityKWh)
	assert.Equal(t, zap.WarnLevel, cfg.LogLevel)
}

func validConfig() Config {
	return Config{
		VictronModbusTcp: VictronModbusTCPConfig{Host: "venus"},
		Battery:          BatteryConfig{CapacityKWh: 10},
		Dispatch:         DispatchConfig{PollIntervalMillis: 10000, Phase: "L1", MinSetPointWatt: 50},
		Tariff:           TariffConfig{File: "tariff.yaml"},
		MQTT:             MQTTConfig{Enabled: true, BaseTopic: "smartess"},
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	broken := map[string]func(*Config){
		"mqtt topic":    func(c *Config) { c.MQTT.BaseTopic = "ess/topic" },
		"no host":       func(c *Config) { c.VictronModbusTcp.Host = "" },
		"no capacity":   func(c *Config) { c.Battery.CapacityKWh = 0 },
		"fast polling":  func(c *Config) { c.Dispatch.PollIntervalMillis = 100 },
		"phase":         func(c *Config) { c.Dispatch.Phase = "L4" },
		"timezone":      func(c *Config) { c.Dispatch.Timezone = "Mars/Olympus" },
		"no tariff":     func(c *Config) { c.Tariff.File = "" },
		"no history db": func(c *Config) { c.History = HistoryConfig{Enabled: true} },
	}
	for name, mutate := range broken {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}

	// capacity can come from the battery monitor
	c := validConfig()
	c.Battery = BatteryConfig{ReadCapacity: true}
	assert.NoError(t, c.Validate())
}

func TestCheckMQTTTopic(t *testing.T) {
	topic, err := CheckMQTTTopic("SmartESS_1")
	require.NoError(t, err)
	assert.Equal(t, "smartess_1", topic)

	_, err = CheckMQTTTopic("smart-ess")
	assert.Error(t, err)
	_, err = CheckMQTTTopic("")
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, ParseLogLevel("trace"))
	assert.Equal(t, zap.ErrorLevel, ParseLogLevel("ERROR"))
	assert.Equal(t, zap.InfoLevel, ParseLogLevel("verbose"))
}
