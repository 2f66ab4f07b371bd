package victron_modbus

import (
	"fmt"
)

type Line uint8

const (
	L1 Line = 1
	L2 Line = 2
	L3 Line = 3
)

func (l Line) Valid() bool {
	return l >= L1 && l <= L3
}

func (l Line) String() string {
	return fmt.Sprintf("L%d", uint8(l))
}

func ParseLine(s string) (Line, error) {
	switch s {
	case "L1", "l1", "1":
		return L1, nil
	case "L2", "l2", "2":
		return L2, nil
	case "L3", "l3", "3":
		return L3, nil
	}
	return 0, fmt.Errorf("victron: unknown line %q", s)
}

type Side uint8

const (
	SideInput Side = iota
	SideOutput
)

type LineDetail struct {
	Voltage   float64
	Current   float64
	Frequency float64
	PowerWatt float64
}

type VEBusTelemetry struct {
	Line           Line
	Input          LineDetail
	Output         LineDetail
	SocPercent     float64
	BatteryVoltage float64
	BatteryCurrent float64
	PhaseCount     uint16
	State          State
	Mode           Mode
	ActiveInput    ActiveInput
}

// ESSCommand is the set of ESS control registers written on each dispatch.
type ESSCommand struct {
	Line          Line
	SetPointWatt  int16
	DisableCharge bool
	DisableFeedIn bool
}

// VE.Bus mode
type Mode uint16

const (
	ModeChargerOnly  Mode = 1
	ModeInverterOnly Mode = 2
	ModeOn           Mode = 3
	ModeOff          Mode = 4
)

const (
	ModeChargerOnlyStr  = "charger_only"
	ModeInverterOnlyStr = "inverter_only"
	ModeOnStr           = "on"
	ModeOffStr          = "off"
	UnknownStr          = "unknown"
)

func ParseMode(v uint16) (Mode, error) {
	switch m := Mode(v); m {
	case ModeChargerOnly, ModeInverterOnly, ModeOn, ModeOff:
		return m, nil
	}
	return 0, fmt.Errorf("victron: invalid mode %d", v)
}

func (m Mode) String() string {
	return ModeToString(uint16(m))
}

func ModeToString(v uint16) string {
	switch Mode(v) {
	case ModeChargerOnly:
		return ModeChargerOnlyStr
	case ModeInverterOnly:
		return ModeInverterOnlyStr
	case ModeOn:
		return ModeOnStr
	case ModeOff:
		return ModeOffStr
	default:
		return fmt.Sprintf("%s(%d)", UnknownStr, v)
	}
}

// VE.Bus state
type State uint16

const (
	StateOff            State = 0
	StateLowPower       State = 1
	StateFault          State = 2
	StateBulk           State = 3
	StateAbsorption     State = 4
	StateFloat          State = 5
	StateStorage        State = 6
	StateEqualize       State = 7
	StatePassthrough    State = 8
	StateInverting      State = 9
	StatePowerAssist    State = 10
	StatePowerSupply    State = 11
	StateBulkProtection State = 252
)

var stateNames = map[State]string{
	StateOff:            "off",
	StateLowPower:       "low_power",
	StateFault:          "fault",
	StateBulk:           "bulk",
	StateAbsorption:     "absorption",
	StateFloat:          "float",
	StateStorage:        "storage",
	StateEqualize:       "equalize",
	StatePassthrough:    "passthrough",
	StateInverting:      "inverting",
	StatePowerAssist:    "power_assist",
	StatePowerSupply:    "power_supply",
	StateBulkProtection: "bulk_protection",
}

func ParseState(v uint16) (State, error) {
	if _, ok := stateNames[State(v)]; !ok {
		return 0, fmt.Errorf("victron: invalid state %d", v)
	}
	return State(v), nil
}

func (s State) String() string {
	return StateToString(uint16(s))
}

func StateToString(v uint16) string {
	if name, ok := stateNames[State(v)]; ok {
		return name
	}
	return fmt.Sprintf("%s(%d)", UnknownStr, v)
}

type ActiveInput uint16

const (
	ActiveInputL1           ActiveInput = 0
	ActiveInputL2           ActiveInput = 1
	ActiveInputDisconnected ActiveInput = 240
)

func ParseActiveInput(v uint16) (ActiveInput, error) {
	switch a := ActiveInput(v); a {
	case ActiveInputL1, ActiveInputL2, ActiveInputDisconnected:
		return a, nil
	}
	return 0, fmt.Errorf("victron: unknown active input %d", v)
}

func (a ActiveInput) String() string {
	switch a {
	case ActiveInputL1:
		return "line_1"
	case ActiveInputL2:
		return "line_2"
	case ActiveInputDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("%s(%d)", UnknownStr, uint16(a))
	}
}

// Line returns the AC input line in use, or an error when disconnected.
func (a ActiveInput) Line() (Line, error) {
	switch a {
	case ActiveInputL1:
		return L1, nil
	case ActiveInputL2:
		return L2, nil
	}
	return 0, fmt.Errorf("victron: no active input")
}

type AlarmState uint16

const (
	AlarmStateOk      AlarmState = 0
	AlarmStateWarning AlarmState = 1
	AlarmStateAlarm   AlarmState = 2
)

func ParseAlarmState(v uint16) (AlarmState, error) {
	switch s := AlarmState(v); s {
	case AlarmStateOk, AlarmStateWarning, AlarmStateAlarm:
		return s, nil
	}
	return 0, fmt.Errorf("victron: invalid alarm state %d", v)
}

func (s AlarmState) String() string {
	switch s {
	case AlarmStateOk:
		return "ok"
	case AlarmStateWarning:
		return "warning"
	case AlarmStateAlarm:
		return "alarm"
	default:
		return fmt.Sprintf("%s(%d)", UnknownStr, uint16(s))
	}
}

type AlarmKind uint8

const (
	AlarmHighTemperature AlarmKind = iota
	AlarmLowBattery
	AlarmOverload
	AlarmTemperatureSensor
	AlarmVoltageSensor
	AlarmLineTemperature
	AlarmLineLowBattery
	AlarmLineOverload
	AlarmLineRipple
	AlarmPhaseRotation
	AlarmGridLost
)

var alarmKindNames = [...]string{
	AlarmHighTemperature:   "high_temperature",
	AlarmLowBattery:        "low_battery",
	AlarmOverload:          "overload",
	AlarmTemperatureSensor: "temperature_sensor",
	AlarmVoltageSensor:     "voltage_sensor",
	AlarmLineTemperature:   "temperature",
	AlarmLineLowBattery:    "low_battery",
	AlarmLineOverload:      "overload",
	AlarmLineRipple:        "ripple",
	AlarmPhaseRotation:     "phase_rotation",
	AlarmGridLost:          "grid_lost",
}

func (k AlarmKind) PerLine() bool {
	return k >= AlarmLineTemperature && k <= AlarmLineRipple
}

// Alarm is the state of one VE.Bus alarm. Line is only set for per line alarms.
type Alarm struct {
	Kind  AlarmKind
	Line  Line
	State AlarmState
}

// Name is a stable identifier such as "l2_ripple" or "grid_lost".
func (a Alarm) Name() string {
	if int(a.Kind) >= len(alarmKindNames) {
		return fmt.Sprintf("%s(%d)", UnknownStr, a.Kind)
	}
	if a.Kind.PerLine() {
		return fmt.Sprintf("l%d_%s", a.Line, alarmKindNames[a.Kind])
	}
	return alarmKindNames[a.Kind]
}

// AlarmSet lists every VE.Bus alarm with an Ok state.
func AlarmSet() []Alarm {
	alarms := []Alarm{
		{Kind: AlarmHighTemperature},
		{Kind: AlarmLowBattery},
		{Kind: AlarmOverload},
		{Kind: AlarmTemperatureSensor},
		{Kind: AlarmVoltageSensor},
	}
	for _, l := range []Line{L1, L2, L3} {
		alarms = append(alarms,
			Alarm{Kind: AlarmLineTemperature, Line: l},
			Alarm{Kind: AlarmLineLowBattery, Line: l},
			Alarm{Kind: AlarmLineOverload, Line: l},
			Alarm{Kind: AlarmLineRipple, Line: l},
		)
	}
	return append(alarms, Alarm{Kind: AlarmPhaseRotation}, Alarm{Kind: AlarmGridLost})
}
