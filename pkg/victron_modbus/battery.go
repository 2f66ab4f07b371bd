package victron_modbus

import "go.uber.org/zap"

type BatteryModbusReader interface {
	Open() error
	Close() error
	// GetCapacity returns the installed capacity in Ah.
	GetCapacity() (float64, error)
}

type BatteryModbusClient struct {
	*ModbusClient
}

func CreateBatteryModbusReader(cfg TCPConfig, logger *zap.Logger, instrumentation *ModbusInstrument) (BatteryModbusReader, error) {
	client, err := newModbusClient(cfg, logger, "battery", instrumentation)
	if err != nil {
		return nil, err
	}
	return &BatteryModbusClient{ModbusClient: client}, nil
}

func (b *BatteryModbusClient) Open() error {
	return b.open()
}

func (b *BatteryModbusClient) Close() error {
	return b.close()
}

func (b *BatteryModbusClient) GetCapacity() (float64, error) {
	v, err := b.readRegister(BatteryRegCapacity)
	if err != nil {
		return 0, err
	}
	return float64(v) / 10, nil
}
