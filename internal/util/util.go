package util

import (
	"github.com/berfenger/smartess/internal/config"

	"go.uber.org/zap"
)

// LoadTestConfig returns a valid config pointing at no real device.
func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		VictronModbusTcp: config.VictronModbusTCPConfig{
			Host:          "-.-.-.-",
			Port:          502,
			VEBusUnitId:   227,
			BatteryUnitId: 225,
			TimeoutMillis: 1000,
		},
		Battery: config.BatteryConfig{
			CapacityKWh: 10,
		},
		Dispatch: config.DispatchConfig{
			PollIntervalMillis: 1000,
			MaxGridImportWatt:  32000,
			MinSetPointWatt:    50,
			Phase:              "L1",
			AlarmPollTicks:     6,
			Timezone:           "UTC",
		},
		Tariff: config.TariffConfig{
			File:       "tariff.yaml",
			ReloadCron: "0 0 * * * *",
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "smartess",
		},
		History: config.HistoryConfig{
			Path: "smartess.db",
		},
		Port: 8080,
	}
}
