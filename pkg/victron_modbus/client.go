package victron_modbus

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

const (
	DefaultVEBusUnitId   uint8 = 227
	DefaultBatteryUnitId uint8 = 225
)

type ModbusClient struct {
	client     *modbus.ModbusClient
	instrument []ModbusInstrument
}

type ModbusInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

type TCPConfig struct {
	Host    string
	Port    uint
	UnitId  uint8
	Timeout time.Duration
}

func newModbusClient(cfg TCPConfig, logger *zap.Logger, target string, instrumentation *ModbusInstrument) (*ModbusClient, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port),
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var inst []ModbusInstrument
	if logger != nil {
		inst = append(inst, traceLoggerInstrumentation(logger.With(zap.String("target", target), zap.Uint8("unit", cfg.UnitId))))
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	if cfg.UnitId > 0 {
		if err := client.SetUnitId(cfg.UnitId); err != nil {
			return nil, err
		}
	}
	return &ModbusClient{
		client:     client,
		instrument: inst,
	}, nil
}

func (c ModbusClient) open() error {
	return c.client.Open()
}

func (c ModbusClient) close() error {
	return c.client.Close()
}

func (c ModbusClient) readRegister(addr uint16) (uint16, error) {
	defer RecordTimer("ReadRegister", c.instrument)()
	return c.client.ReadRegister(addr, modbus.INPUT_REGISTER)
}

func (c ModbusClient) readInt16(addr uint16) (int16, error) {
	v, err := c.readRegister(addr)
	return int16(v), err
}

func (c ModbusClient) readRegisters(addr uint16, quantity uint16) ([]uint16, error) {
	defer RecordTimer("ReadRegisters", c.instrument)()
	return c.client.ReadRegisters(addr, quantity, modbus.INPUT_REGISTER)
}

func (c ModbusClient) readBool(addr uint16) (bool, error) {
	v, err := c.readRegister(addr)
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("victron: register %d: unknown bool state %d", addr, v)
}

func (c ModbusClient) writeRegister(addr uint16, value uint16) error {
	defer RecordTimer("WriteRegister", c.instrument)()
	return c.client.WriteRegister(addr, value)
}

func (c ModbusClient) writeInt16(addr uint16, value int16) error {
	return c.writeRegister(addr, uint16(value))
}

func RecordTimer(name string, instrument []ModbusInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func traceLoggerInstrumentation(logger *zap.Logger) ModbusInstrument {
	return ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus call", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}
