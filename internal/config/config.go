package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel         zapcore.Level
	VictronModbusTcp VictronModbusTCPConfig `mapstructure:"victron_modbus_tcp"`
	Battery          BatteryConfig          `mapstructure:"battery"`
	Dispatch         DispatchConfig         `mapstructure:"dispatch"`
	Tariff           TariffConfig           `mapstructure:"tariff"`
	MQTT             MQTTConfig             `mapstructure:"mqtt"`
	History          HistoryConfig          `mapstructure:"history"`
	Metrics          MetricsConfig          `mapstructure:"metrics"`
	Port             uint                   `mapstructure:"port"`
	HttpLog          bool                   `mapstructure:"http_log"`
}

type VictronModbusTCPConfig struct {
	Host          string
	Port          uint
	VEBusUnitId   uint   `mapstructure:"vebus_unit_id"`
	BatteryUnitId uint   `mapstructure:"battery_unit_id"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type BatteryConfig struct {
	CapacityKWh float64 `mapstructure:"capacity_kwh"`
	// read the capacity from the battery monitor instead of CapacityKWh
	ReadCapacity bool `mapstructure:"read_capacity"`
}

type DispatchConfig struct {
	PollIntervalMillis uint32  `mapstructure:"poll_interval_millis"`
	MaxGridImportWatt  float64 `mapstructure:"max_grid_import_watt"`
	MinSetPointWatt    int16   `mapstructure:"min_set_point_watt"`
	Phase              string  `mapstructure:"phase"`
	DryRun             bool    `mapstructure:"dry_run"`
	AlarmPollTicks     uint    `mapstructure:"alarm_poll_ticks"`
	Timezone           string  `mapstructure:"timezone"`
}

type TariffConfig struct {
	File       string `mapstructure:"file"`
	ReloadCron string `mapstructure:"reload_cron"`
}

type MQTTConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Username    string
	Password    string
	ClientId    string `mapstructure:"client_id"`
	BaseTopic   string `mapstructure:"base_topic"`
	HADiscovery bool   `mapstructure:"ha_discovery"`
}

type HistoryConfig struct {
	Enabled bool
	Path    string
}

type MetricsConfig struct {
	Enabled bool
}

func (c VictronModbusTCPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

func (c DispatchConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

// Location resolves the timezone used for local midnight and weekdays.
func (c DispatchConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

var ErrInvalidConfig = errors.New("invalid config")

// Validate checks bounds and normalizes the MQTT base topic.
func (c *Config) Validate() error {
	if c.MQTT.Enabled {
		baseTopic, err := CheckMQTTTopic(c.MQTT.BaseTopic)
		if err != nil {
			return fmt.Errorf("%w: mqtt.base_topic: %v", ErrInvalidConfig, err)
		}
		c.MQTT.BaseTopic = baseTopic
	}
	if c.VictronModbusTcp.Host == "" {
		return fmt.Errorf("%w: victron_modbus_tcp.host is required", ErrInvalidConfig)
	}
	if !c.Battery.ReadCapacity && c.Battery.CapacityKWh <= 0 {
		return fmt.Errorf("%w: battery.capacity_kwh should be > 0", ErrInvalidConfig)
	}
	if c.Dispatch.PollIntervalMillis < 1000 {
		return fmt.Errorf("%w: dispatch.poll_interval_millis should be >= 1000", ErrInvalidConfig)
	}
	if c.Dispatch.MinSetPointWatt < 0 {
		return fmt.Errorf("%w: dispatch.min_set_point_watt should be >= 0", ErrInvalidConfig)
	}
	if c.Dispatch.MaxGridImportWatt < 0 {
		return fmt.Errorf("%w: dispatch.max_grid_import_watt should be >= 0", ErrInvalidConfig)
	}
	switch strings.ToUpper(c.Dispatch.Phase) {
	case "L1", "L2", "L3":
	default:
		return fmt.Errorf("%w: dispatch.phase must be one of L1, L2, L3", ErrInvalidConfig)
	}
	if _, err := c.Dispatch.Location(); err != nil {
		return err
	}
	if c.Tariff.File == "" {
		return fmt.Errorf("%w: tariff.file is required", ErrInvalidConfig)
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("%w: history.path is required when history is enabled", ErrInvalidConfig)
	}
	return nil
}

var baseTopicRegexp = regexp.MustCompile("^[a-z0-9_]+$")

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	if !baseTopicRegexp.MatchString(lowerBaseTopic) {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
