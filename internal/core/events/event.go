package events

import (
	"strings"
	"time"

	. "github.com/berfenger/smartess/internal/core/domain"
	"github.com/berfenger/smartess/pkg/victron_modbus"
)

const noneValue = "none"

// DispatchToUpdateEvents maps one tick decision to sensor states.
func DispatchToUpdateEvents(in ControllerInputState, out ControllerOutputState, cmd DispatchCommand) []SensorUpdateEvent {
	var events []SensorUpdateEvent

	events = append(events,
		textEvent(SENSOR_ID_DISPATCH_REGIME, out.Regime.String()),
		textEvent(SENSOR_ID_DISPATCH_CURRENT_RATE, rateName(out.CurrentRate)),
		textEvent(SENSOR_ID_DISPATCH_NEXT_RATE, rateName(out.NextRate)),
	)
	// next charge as an ISO timestamp
	nextCharge := noneValue
	if !out.NextCharge.IsZero() {
		nextCharge = out.NextCharge.Start.Format(time.RFC3339)
	}
	events = append(events, textEvent(SENSOR_ID_DISPATCH_NEXT_CHARGE, nextCharge))

	events = append(events,
		floatEvent(SENSOR_ID_DISPATCH_HOURS_UNTIL_CHARGE, out.HoursUntilCharge, 2),
		floatEvent(SENSOR_ID_DISPATCH_SYSTEM_LOAD, in.SystemLoad, 0),
		floatEvent(SENSOR_ID_DISPATCH_GRID_LOAD, out.GridLoad, 0),
		floatEvent(SENSOR_ID_DISPATCH_BATTERY_LOAD, out.BatteryLoad, 0),
		floatEvent(SENSOR_ID_DISPATCH_SET_POINT, float64(cmd.SetPointWatt), 0),
		binaryEvent(SENSOR_ID_DISPATCH_CHARGE_ENABLED, !cmd.DisableCharge),
		binaryEvent(SENSOR_ID_DISPATCH_FEED_IN_ENABLED, !cmd.DisableFeedIn),
		floatEvent(SENSOR_ID_BATTERY_SOC, in.Soc*100, 1),
		floatEvent(SENSOR_ID_BATTERY_USABLE_SOC, out.Soc*100, 1),
		floatEvent(SENSOR_ID_BATTERY_AVAILABLE_CAPACITY, out.AvailableCapacity, 3),
		floatEvent(SENSOR_ID_BATTERY_USING_CAPACITY, out.UsingCapacity, 3),
		floatEvent(SENSOR_ID_BATTERY_RESERVE_CAPACITY, out.ReserveCapacity, 3),
	)

	return events
}

func TelemetryToUpdateEvents(t *victron_modbus.VEBusTelemetry) []SensorUpdateEvent {
	if t == nil {
		return nil
	}
	return []SensorUpdateEvent{
		floatEvent(SENSOR_ID_BATTERY_VOLTAGE, t.BatteryVoltage, 2),
		floatEvent(SENSOR_ID_BATTERY_CURRENT, t.BatteryCurrent, 1),
		floatEvent(SENSOR_ID_VEBUS_INPUT_POWER, t.Input.PowerWatt, 0),
		floatEvent(SENSOR_ID_VEBUS_OUTPUT_POWER, t.Output.PowerWatt, 0),
		textEvent(SENSOR_ID_VEBUS_STATE, t.State.String()),
	}
}

// AlarmsToUpdateEvents publishes the names of the alarms not in the ok state.
func AlarmsToUpdateEvents(alarms []victron_modbus.Alarm) []SensorUpdateEvent {
	var active []string
	for _, a := range alarms {
		if a.State != victron_modbus.AlarmStateOk {
			active = append(active, a.Name()+"="+a.State.String())
		}
	}
	value := noneValue
	if len(active) > 0 {
		value = strings.Join(active, ",")
	}
	return []SensorUpdateEvent{textEvent(SENSOR_ID_VEBUS_ACTIVE_ALARMS, value)}
}

func DispatchSwitchesUpdateEvents(hold, dryRun bool) []SensorUpdateEvent {
	return []SensorUpdateEvent{
		DispatchHoldSwitchUpdateEvent(hold),
		DispatchDryRunSwitchUpdateEvent(dryRun),
	}
}

func DispatchHoldSwitchUpdateEvent(hold bool) SensorUpdateEvent {
	return SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_DISPATCH_HOLD,
		},
		Value: hold,
	}
}

func DispatchDryRunSwitchUpdateEvent(dryRun bool) SensorUpdateEvent {
	return SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_DISPATCH_DRY_RUN,
		},
		Value: dryRun,
	}
}

func BridgeStateUpdateEvents(online bool) SensorUpdateEvent {
	return BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BRIDGE_STATE,
		},
		Value: online,
	}
}

func rateName(e ScheduleEntry) string {
	if e.IsZero() {
		return noneValue
	}
	return e.Rate.Name
}

func floatEvent(id string, value float64, decimals uint) SensorUpdateEvent {
	return FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value:    value,
		Decimals: decimals,
	}
}

func binaryEvent(id string, value bool) SensorUpdateEvent {
	return BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value: value,
	}
}

func textEvent(id, value string) SensorUpdateEvent {
	return TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value: value,
	}
}
