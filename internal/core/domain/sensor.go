package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE                = "bridge"
	SENSOR_ID_DISPATCH_REGIME             = "dispatch_regime"
	SENSOR_ID_DISPATCH_CURRENT_RATE       = "dispatch_current_rate"
	SENSOR_ID_DISPATCH_NEXT_RATE          = "dispatch_next_rate"
	SENSOR_ID_DISPATCH_NEXT_CHARGE        = "dispatch_next_charge"
	SENSOR_ID_DISPATCH_HOURS_UNTIL_CHARGE = "dispatch_hours_until_charge"
	SENSOR_ID_DISPATCH_SYSTEM_LOAD        = "dispatch_system_load"
	SENSOR_ID_DISPATCH_GRID_LOAD          = "dispatch_grid_load"
	SENSOR_ID_DISPATCH_BATTERY_LOAD       = "dispatch_battery_load"
	SENSOR_ID_DISPATCH_SET_POINT          = "dispatch_set_point"
	SENSOR_ID_DISPATCH_CHARGE_ENABLED     = "dispatch_charge_enabled"
	SENSOR_ID_DISPATCH_FEED_IN_ENABLED    = "dispatch_feed_in_enabled"
	SENSOR_ID_BATTERY_SOC                 = "battery_soc"
	SENSOR_ID_BATTERY_USABLE_SOC          = "battery_usable_soc"
	SENSOR_ID_BATTERY_AVAILABLE_CAPACITY  = "battery_available_capacity"
	SENSOR_ID_BATTERY_USING_CAPACITY      = "battery_using_capacity"
	SENSOR_ID_BATTERY_RESERVE_CAPACITY    = "battery_reserve_capacity"
	SENSOR_ID_BATTERY_VOLTAGE             = "battery_voltage"
	SENSOR_ID_BATTERY_CURRENT             = "battery_current"
	SENSOR_ID_VEBUS_STATE                 = "vebus_state"
	SENSOR_ID_VEBUS_ACTIVE_ALARMS         = "vebus_active_alarms"
	SENSOR_ID_VEBUS_OUTPUT_POWER          = "vebus_output_power"
	SENSOR_ID_VEBUS_INPUT_POWER           = "vebus_input_power"
	SWITCH_ID_DISPATCH_HOLD               = "dispatch_hold"
	SWITCH_ID_DISPATCH_DRY_RUN            = "dispatch_dry_run"
	STATE_CLASS_MEASUREMENT               = "measurement"
	DEVICE_CLASS_BATTERY                  = "battery"
	DEVICE_CLASS_CURRENT                  = "current"
	DEVICE_CLASS_ENERGY_STORAGE           = "energy_storage"
	DEVICE_CLASS_POWER                    = "power"
	DEVICE_CLASS_VOLTAGE                  = "voltage"
	DEVICE_CLASS_DURATION                 = "duration"
	DEVICE_CLASS_TIMESTAMP                = "timestamp"
	DEVICE_CLASS_CONNECTIVITY             = "connectivity"
	DEVICE_CLASS_RUNNING                  = "running"
	ENTITY_CLASS_DIAGNOSTIC               = "diagnostic"
	SENSOR_TYPE_SENSOR                    = "sensor"
	SENSOR_TYPE_BINARY                    = "binary_sensor"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("smartess_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "SmartESS",
		Model:        "SmartESS",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("SmartESS %s", md5HashShort(baseTopic)),
	}
}

// ESSDevice is the inverter/charger controlled through the GX Modbus TCP server.
func ESSDevice(host string, bridge Device) Device {
	return Device{
		Id:           fmt.Sprintf("smartess_ess_%s", md5HashShort(host)),
		Manufacturer: "Victron Energy",
		Model:        "ESS",
		Name:         fmt.Sprintf("ESS %s", md5HashShort(host)),
		ViaDevice:    bridge.Id,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

// DispatchSensors lists every state published for a dispatch tick. Only the
// first sensor carries the full device description.
func DispatchSensors(essDevice Device) []GenericSensor {
	sensors := []GenericSensor{
		{Id: SENSOR_ID_DISPATCH_REGIME, Name: "Dispatch regime", Icon: "mdi:battery-sync"},
		{Id: SENSOR_ID_DISPATCH_CURRENT_RATE, Name: "Current rate", Icon: "mdi:cash-clock"},
		{Id: SENSOR_ID_DISPATCH_NEXT_RATE, Name: "Next rate", Icon: "mdi:cash-fast"},
		{Id: SENSOR_ID_DISPATCH_NEXT_CHARGE, Name: "Next charge", DeviceClass: DEVICE_CLASS_TIMESTAMP},
		{Id: SENSOR_ID_DISPATCH_HOURS_UNTIL_CHARGE, Name: "Hours until charge", DeviceClass: DEVICE_CLASS_DURATION, UnitOfMeasurement: "h", StateClass: STATE_CLASS_MEASUREMENT},
		{Id: SENSOR_ID_DISPATCH_SYSTEM_LOAD, Name: "System load", DeviceClass: DEVICE_CLASS_POWER, UnitOfMeasurement: "W", StateClass: STATE_CLASS_MEASUREMENT},
		{Id: SENSOR_ID_DISPATCH_GRID_LOAD, Name: "Grid load", DeviceClass: DEVICE_CLASS_POWER, UnitOfMeasurement: "W", StateClass: STATE_CLASS_MEASUREMENT},
		{Id: SENSOR_ID_DISPATCH_BATTERY_LOAD, Name: "Battery load", DeviceClass: DEVICE_CLASS_POWER, UnitOfMeasurement: "W", StateClass: STATE_CLASS_MEASUREMENT},
		{Id: SENSOR_ID_DISPATCH_SET_POINT, Name: "Grid set point", DeviceClass: DEVICE_CLASS_POWER, UnitOfMeasurement: "W", StateClass: STATE_CLASS_MEASUREMENT},
		{Id: SENSOR_ID_DISPATCH_CHARGE_ENABLED, Name: "Charge enabled", SensorType: SENSOR_TYPE_BINARY, DeviceClass: DEVICE_CLASS_RUNNING},
		{Id: SENSOR_ID_DISPATCH_FEED_IN_ENABLED, Name: "Feed-in enabled", SensorType: SENSOR_TYPE_BINARY, DeviceClass: DEVICE_CLASS_RUNNING},
		{Id: SENSOR_ID_BATTERY_SOC, Name: "Battery SoC", DeviceClass: DEVICE_CLASS_BATTERY, UnitOfMeasurement: "%", StateClass: STATE_CLASS_MEASUREMENT},
		{Id: SENSOR_ID_BATTERY_USABLE_SOC, Name: "Battery usable SoC", UnitOfMeasurement: "%", StateClass: STATE_CLASS_MEASUREMENT, Icon: "mdi:battery-arrow-down"},
		{Id: SENSOR_ID_BATTERY_AVAILABLE_CAPACITY, Name: "Battery available capacity", DeviceClass: DEVICE_CLASS_ENERGY_STORAGE, UnitOfMeasurement: "kWh", StateClass: STATE_CLASS_MEASUREMENT},
		{Id: SENSOR_ID_BATTERY_USING_CAPACITY, Name: "Battery dispatchable capacity", DeviceClass: DEVICE_CLASS_ENERGY_STORAGE, UnitOfMeasurement: "kWh", StateClass: STATE_CLASS_MEASUREMENT},
		{Id: SENSOR_ID_BATTERY_RESERVE_CAPACITY, Name: "Battery reserve", DeviceClass: DEVICE_CLASS_ENERGY_STORAGE, UnitOfMeasurement: "kWh", StateClass: STATE_CLASS_MEASUREMENT},
		{Id: SENSOR_ID_BATTERY_VOLTAGE, Name: "Battery voltage", DeviceClass: DEVICE_CLASS_VOLTAGE, UnitOfMeasurement: "V", StateClass: STATE_CLASS_MEASUREMENT},
		{Id: SENSOR_ID_BATTERY_CURRENT, Name: "Battery current", DeviceClass: DEVICE_CLASS_CURRENT, UnitOfMeasurement: "A", StateClass: STATE_CLASS_MEASUREMENT},
		{Id: SENSOR_ID_VEBUS_INPUT_POWER, Name: "AC input power", DeviceClass: DEVICE_CLASS_POWER, UnitOfMeasurement: "W", StateClass: STATE_CLASS_MEASUREMENT},
		{Id: SENSOR_ID_VEBUS_OUTPUT_POWER, Name: "AC output power", DeviceClass: DEVICE_CLASS_POWER, UnitOfMeasurement: "W", StateClass: STATE_CLASS_MEASUREMENT},
		{Id: SENSOR_ID_VEBUS_STATE, Name: "Inverter state", EntityCategory: ENTITY_CLASS_DIAGNOSTIC},
		{Id: SENSOR_ID_VEBUS_ACTIVE_ALARMS, Name: "Active alarms", EntityCategory: ENTITY_CLASS_DIAGNOSTIC, Icon: "mdi:alert"},
	}
	for i := range sensors {
		if sensors[i].SensorType == "" {
			sensors[i].SensorType = SENSOR_TYPE_SENSOR
		}
		sensors[i].UniqueId = uniqueId(essDevice.Id, sensors[i].Id)
		if i == 0 {
			sensors[i].Device = essDevice
		} else {
			sensors[i].Device = IdDevice(essDevice)
		}
	}
	return sensors
}

func DispatchSwitches(essDevice Device) []GenericSwitch {
	return []GenericSwitch{
		{
			Device:   IdDevice(essDevice),
			Id:       SWITCH_ID_DISPATCH_HOLD,
			Name:     "Dispatch hold",
			UniqueId: uniqueId(essDevice.Id, SWITCH_ID_DISPATCH_HOLD),
			Icon:     "mdi:battery-lock",
		},
		{
			Device:   IdDevice(essDevice),
			Id:       SWITCH_ID_DISPATCH_DRY_RUN,
			Name:     "Dispatch dry run",
			UniqueId: uniqueId(essDevice.Id, SWITCH_ID_DISPATCH_DRY_RUN),
			Icon:     "mdi:test-tube",
		},
	}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[0:8]
}
