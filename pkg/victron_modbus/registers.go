package victron_modbus

import "fmt"

// VE.Bus (com.victronenergy.vebus) registers
const (
	VEBusRegOutputFrequency         uint16 = 21
	VEBusRegActiveInputCurrentLimit uint16 = 22
	VEBusRegBatteryVoltage          uint16 = 26
	VEBusRegBatteryCurrent          uint16 = 27
	VEBusRegPhaseCount              uint16 = 28
	VEBusRegActiveInput             uint16 = 29
	VEBusRegSoc                     uint16 = 30
	VEBusRegState                   uint16 = 31
	VEBusRegMode                    uint16 = 33
)

// ESS control registers, on the VE.Bus unit
const (
	ESSRegChargePower uint16 = 38
	ESSRegFeedInPower uint16 = 39
)

// battery monitor registers
const (
	BatteryRegCapacity uint16 = 309
)

// first and last register of the VE.Bus block read for telemetry
const (
	veBusBlockStart uint16 = 3
	veBusBlockEnd   uint16 = VEBusRegMode
)

func lineRegister(base uint16, l Line) (uint16, error) {
	if !l.Valid() {
		return 0, fmt.Errorf("victron: invalid line %d", l)
	}
	return base + uint16(l), nil
}

func InputVoltageRegister(l Line) (uint16, error)   { return lineRegister(2, l) }
func InputCurrentRegister(l Line) (uint16, error)   { return lineRegister(5, l) }
func InputFrequencyRegister(l Line) (uint16, error) { return lineRegister(8, l) }
func InputPowerRegister(l Line) (uint16, error)     { return lineRegister(11, l) }
func OutputVoltageRegister(l Line) (uint16, error)  { return lineRegister(14, l) }
func OutputCurrentRegister(l Line) (uint16, error)  { return lineRegister(17, l) }
func OutputPowerRegister(l Line) (uint16, error)    { return lineRegister(22, l) }

func PowerSetPointRegister(l Line) (uint16, error) {
	switch l {
	case L1:
		return 37, nil
	case L2:
		return 40, nil
	case L3:
		return 41, nil
	}
	return 0, fmt.Errorf("victron: invalid line %d", l)
}

func ACInputIgnoreRegister(l Line) (uint16, error) {
	switch l {
	case L1:
		return 69, nil
	case L2:
		return 70, nil
	}
	return 0, fmt.Errorf("victron: no AC input ignore for line %d", l)
}

func AlarmRegister(a Alarm) (uint16, error) {
	if a.Kind.PerLine() && !a.Line.Valid() {
		return 0, fmt.Errorf("victron: alarm %d needs a line", a.Kind)
	}
	offset := 4 * (uint16(a.Line) - 1)
	switch a.Kind {
	case AlarmHighTemperature:
		return 34, nil
	case AlarmLowBattery:
		return 35, nil
	case AlarmOverload:
		return 36, nil
	case AlarmTemperatureSensor:
		return 42, nil
	case AlarmVoltageSensor:
		return 43, nil
	case AlarmLineTemperature:
		return 44 + offset, nil
	case AlarmLineLowBattery:
		return 45 + offset, nil
	case AlarmLineOverload:
		return 46 + offset, nil
	case AlarmLineRipple:
		return 47 + offset, nil
	case AlarmPhaseRotation:
		return 63, nil
	case AlarmGridLost:
		return 64, nil
	}
	return 0, fmt.Errorf("victron: unknown alarm %d", a.Kind)
}
