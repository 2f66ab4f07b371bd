package victron_modbus

import (
	"fmt"

	"go.uber.org/zap"
)

type VEBusModbusReader interface {
	Open() error
	Close() error
	GetTelemetry(line Line) (*VEBusTelemetry, error)
	GetLineInfo(side Side, line Line) (*LineDetail, error)
	GetSoc() (float64, error)
	GetState() (State, error)
	GetMode() (Mode, error)
	SetMode(mode Mode) error
	GetActiveInput() (ActiveInput, error)
	GetAlarms() ([]Alarm, error)
	SetACInputIgnore(line Line, ignore bool) error
	GetACInputIgnore(line Line) (bool, error)
}

type VEBusModbusClient struct {
	*ModbusClient
}

func CreateVEBusModbusReader(cfg TCPConfig, logger *zap.Logger, instrumentation *ModbusInstrument) (VEBusModbusReader, error) {
	client, err := newModbusClient(cfg, logger, "vebus", instrumentation)
	if err != nil {
		return nil, err
	}
	return &VEBusModbusClient{ModbusClient: client}, nil
}

func (r *VEBusModbusClient) Open() error {
	return r.open()
}

func (r *VEBusModbusClient) Close() error {
	return r.close()
}

// GetTelemetry reads the VE.Bus block in one request and decodes the values
// for the given line.
func (r *VEBusModbusClient) GetTelemetry(line Line) (*VEBusTelemetry, error) {
	regs, err := r.readRegisters(veBusBlockStart, veBusBlockEnd-veBusBlockStart+1)
	if err != nil {
		return nil, err
	}
	return decodeVEBusBlock(regs, line)
}

func (r *VEBusModbusClient) GetLineInfo(side Side, line Line) (*LineDetail, error) {
	addrs, err := lineDetailRegisters(side, line)
	if err != nil {
		return nil, err
	}
	var raw [4]uint16
	for i, addr := range addrs {
		raw[i], err = r.readRegister(addr)
		if err != nil {
			return nil, err
		}
	}
	d := decodeLineDetail(raw[0], raw[1], raw[2], raw[3])
	return &d, nil
}

// GetSoc returns the state of charge in percent.
func (r *VEBusModbusClient) GetSoc() (float64, error) {
	v, err := r.readRegister(VEBusRegSoc)
	if err != nil {
		return 0, err
	}
	return float64(v) / 10, nil
}

func (r *VEBusModbusClient) GetState() (State, error) {
	v, err := r.readRegister(VEBusRegState)
	if err != nil {
		return 0, err
	}
	return ParseState(v)
}

func (r *VEBusModbusClient) GetMode() (Mode, error) {
	v, err := r.readRegister(VEBusRegMode)
	if err != nil {
		return 0, err
	}
	return ParseMode(v)
}

func (r *VEBusModbusClient) SetMode(mode Mode) error {
	if _, err := ParseMode(uint16(mode)); err != nil {
		return err
	}
	return r.writeRegister(VEBusRegMode, uint16(mode))
}

func (r *VEBusModbusClient) GetActiveInput() (ActiveInput, error) {
	v, err := r.readRegister(VEBusRegActiveInput)
	if err != nil {
		return 0, err
	}
	return ParseActiveInput(v)
}

// GetAlarms builds a new alarm list with the state read for each alarm.
func (r *VEBusModbusClient) GetAlarms() ([]Alarm, error) {
	set := AlarmSet()
	alarms := make([]Alarm, 0, len(set))
	for _, a := range set {
		addr, err := AlarmRegister(a)
		if err != nil {
			return nil, err
		}
		v, err := r.readRegister(addr)
		if err != nil {
			return nil, err
		}
		state, err := ParseAlarmState(v)
		if err != nil {
			return nil, err
		}
		alarms = append(alarms, Alarm{Kind: a.Kind, Line: a.Line, State: state})
	}
	return alarms, nil
}

func (r *VEBusModbusClient) SetACInputIgnore(line Line, ignore bool) error {
	addr, err := ACInputIgnoreRegister(line)
	if err != nil {
		return err
	}
	var v uint16
	if ignore {
		v = 1
	}
	return r.writeRegister(addr, v)
}

func (r *VEBusModbusClient) GetACInputIgnore(line Line) (bool, error) {
	addr, err := ACInputIgnoreRegister(line)
	if err != nil {
		return false, err
	}
	return r.readBool(addr)
}

func lineDetailRegisters(side Side, line Line) ([4]uint16, error) {
	var regs [4]uint16
	var err error
	if side == SideInput {
		if regs[0], err = InputVoltageRegister(line); err != nil {
			return regs, err
		}
		regs[1], _ = InputCurrentRegister(line)
		regs[2], _ = InputFrequencyRegister(line)
		regs[3], _ = InputPowerRegister(line)
		return regs, nil
	}
	if regs[0], err = OutputVoltageRegister(line); err != nil {
		return regs, err
	}
	regs[1], _ = OutputCurrentRegister(line)
	regs[2] = VEBusRegOutputFrequency
	regs[3], _ = OutputPowerRegister(line)
	return regs, nil
}

func decodeLineDetail(voltage, current, frequency, power uint16) LineDetail {
	return LineDetail{
		Voltage:   float64(voltage) / 10,
		Current:   float64(int16(current)) / 10,
		Frequency: float64(int16(frequency)) / 100,
		PowerWatt: float64(int16(power)) * 10,
	}
}

func decodeVEBusBlock(regs []uint16, line Line) (*VEBusTelemetry, error) {
	if len(regs) < int(veBusBlockEnd-veBusBlockStart+1) {
		return nil, fmt.Errorf("victron: short VE.Bus block, %d registers", len(regs))
	}
	at := func(addr uint16) uint16 {
		return regs[addr-veBusBlockStart]
	}
	in, err := lineDetailRegisters(SideInput, line)
	if err != nil {
		return nil, err
	}
	out, _ := lineDetailRegisters(SideOutput, line)
	state, err := ParseState(at(VEBusRegState))
	if err != nil {
		return nil, err
	}
	mode, err := ParseMode(at(VEBusRegMode))
	if err != nil {
		return nil, err
	}
	activeInput, err := ParseActiveInput(at(VEBusRegActiveInput))
	if err != nil {
		return nil, err
	}
	return &VEBusTelemetry{
		Line:           line,
		Input:          decodeLineDetail(at(in[0]), at(in[1]), at(in[2]), at(in[3])),
		Output:         decodeLineDetail(at(out[0]), at(out[1]), at(out[2]), at(out[3])),
		SocPercent:     float64(at(VEBusRegSoc)) / 10,
		BatteryVoltage: float64(at(VEBusRegBatteryVoltage)) / 100,
		BatteryCurrent: float64(int16(at(VEBusRegBatteryCurrent))) / 10,
		PhaseCount:     at(VEBusRegPhaseCount),
		State:          state,
		Mode:           mode,
		ActiveInput:    activeInput,
	}, nil
}
