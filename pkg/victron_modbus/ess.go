package victron_modbus

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	PowerDisabledPercent uint8 = 0
	PowerFullPercent     uint8 = 100
)

type ESSModbusWriter interface {
	Open() error
	Close() error
	GetPowerSetPoint(line Line) (int16, error)
	// SetPowerSetPoint takes watts, positive imports from the grid and negative feeds in.
	SetPowerSetPoint(line Line, watt int16) error
	GetChargePower() (uint8, error)
	SetChargePower(percent uint8) error
	GetFeedInPower() (uint8, error)
	SetFeedInPower(percent uint8) error
	Apply(cmd ESSCommand) error
}

type ESSModbusClient struct {
	*ModbusClient
}

func CreateESSModbusWriter(cfg TCPConfig, logger *zap.Logger, instrumentation *ModbusInstrument) (ESSModbusWriter, error) {
	client, err := newModbusClient(cfg, logger, "ess", instrumentation)
	if err != nil {
		return nil, err
	}
	return &ESSModbusClient{ModbusClient: client}, nil
}

func (w *ESSModbusClient) Open() error {
	return w.open()
}

func (w *ESSModbusClient) Close() error {
	return w.close()
}

func (w *ESSModbusClient) GetPowerSetPoint(line Line) (int16, error) {
	addr, err := PowerSetPointRegister(line)
	if err != nil {
		return 0, err
	}
	return w.readInt16(addr)
}

func (w *ESSModbusClient) SetPowerSetPoint(line Line, watt int16) error {
	addr, err := PowerSetPointRegister(line)
	if err != nil {
		return err
	}
	return w.writeInt16(addr, watt)
}

func (w *ESSModbusClient) GetChargePower() (uint8, error) {
	return w.readPercent(ESSRegChargePower)
}

func (w *ESSModbusClient) SetChargePower(percent uint8) error {
	return w.writePercent(ESSRegChargePower, percent)
}

func (w *ESSModbusClient) GetFeedInPower() (uint8, error) {
	return w.readPercent(ESSRegFeedInPower)
}

func (w *ESSModbusClient) SetFeedInPower(percent uint8) error {
	return w.writePercent(ESSRegFeedInPower, percent)
}

// Apply writes the set point first, then the charge and feed-in limits.
func (w *ESSModbusClient) Apply(cmd ESSCommand) error {
	if err := w.SetPowerSetPoint(cmd.Line, cmd.SetPointWatt); err != nil {
		return fmt.Errorf("set point: %w", err)
	}
	if err := w.SetFeedInPower(PowerPercent(!cmd.DisableFeedIn)); err != nil {
		return fmt.Errorf("feed-in power: %w", err)
	}
	if err := w.SetChargePower(PowerPercent(!cmd.DisableCharge)); err != nil {
		return fmt.Errorf("charge power: %w", err)
	}
	return nil
}

func (w *ESSModbusClient) readPercent(addr uint16) (uint8, error) {
	v, err := w.readRegister(addr)
	if err != nil {
		return 0, err
	}
	if v > uint16(PowerFullPercent) {
		return 0, fmt.Errorf("victron: register %d: percent out of range %d", addr, v)
	}
	return uint8(v), nil
}

func (w *ESSModbusClient) writePercent(addr uint16, percent uint8) error {
	if percent > PowerFullPercent {
		return fmt.Errorf("victron: percent out of range %d", percent)
	}
	return w.writeRegister(addr, uint16(percent))
}

func PowerPercent(enabled bool) uint8 {
	if enabled {
		return PowerFullPercent
	}
	return PowerDisabledPercent
}
