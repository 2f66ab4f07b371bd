package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const EnvPrefix = "smartess"

func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("port", 8080)
	v.SetDefault("http_log", false)
	v.SetDefault("victron_modbus_tcp.host", "")
	v.SetDefault("victron_modbus_tcp.port", 502)
	v.SetDefault("victron_modbus_tcp.vebus_unit_id", 227)
	v.SetDefault("victron_modbus_tcp.battery_unit_id", 225)
	v.SetDefault("victron_modbus_tcp.timeout_millis", 1000)
	v.SetDefault("battery.capacity_kwh", 0)
	v.SetDefault("battery.read_capacity", false)
	v.SetDefault("dispatch.poll_interval_millis", 10000)
	v.SetDefault("dispatch.max_grid_import_watt", 32000)
	v.SetDefault("dispatch.min_set_point_watt", 50)
	v.SetDefault("dispatch.phase", "L1")
	v.SetDefault("dispatch.dry_run", false)
	v.SetDefault("dispatch.alarm_poll_ticks", 6)
	v.SetDefault("dispatch.timezone", "local")
	v.SetDefault("tariff.file", "tariff.yaml")
	v.SetDefault("tariff.reload_cron", "0 0 * * * *")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.base_topic", "smartess")
	v.SetDefault("mqtt.ha_discovery", false)
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "smartess.db")
	v.SetDefault("metrics.enabled", true)
}

// Load reads defaults, the environment and the optional CONFIG_FILE into v
// and returns the validated config.
func Load(v *viper.Viper) (*Config, error) {
	// alias PORT => SMARTESS_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SMARTESS_PORT", port)
	}

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			v.SetConfigFile(cfgFile)

			err = v.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.LogLevel = ParseLogLevel(v.GetString("log_level"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func ParseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.MQTT.Username != "" {
		c.MQTT.Username = "*redacted*"
	}
	if c.MQTT.Password != "" {
		c.MQTT.Password = "*redacted*"
	}
	return c
}
