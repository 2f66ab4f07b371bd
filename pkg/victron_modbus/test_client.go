package victron_modbus

import (
	"sync"
)

func CreateTestVEBusReader() *TestVEBusReader {
	return &TestVEBusReader{
		Telemetry: VEBusTelemetry{
			Line:           L1,
			Input:          LineDetail{Voltage: 231.2, Current: 4.1, Frequency: 50.01, PowerWatt: 950},
			Output:         LineDetail{Voltage: 230.4, Current: 6.3, Frequency: 50.01, PowerWatt: 1450},
			SocPercent:     64.5,
			BatteryVoltage: 52.31,
			BatteryCurrent: -9.6,
			PhaseCount:     1,
			State:          StateInverting,
			Mode:           ModeOn,
			ActiveInput:    ActiveInputL1,
		},
	}
}

// TestVEBusReader serves fixed telemetry. Err, when set, is returned by every call.
type TestVEBusReader struct {
	mu        sync.Mutex
	Telemetry VEBusTelemetry
	Alarms    []Alarm
	Err       error
}

func (r *TestVEBusReader) Open() error {
	return nil
}

func (r *TestVEBusReader) Close() error {
	return nil
}

func (r *TestVEBusReader) SetTelemetry(t VEBusTelemetry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Telemetry = t
}

func (r *TestVEBusReader) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
}

func (r *TestVEBusReader) SetAlarms(alarms []Alarm) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Alarms = alarms
}

func (r *TestVEBusReader) GetTelemetry(line Line) (*VEBusTelemetry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	t := r.Telemetry
	t.Line = line
	return &t, nil
}

func (r *TestVEBusReader) GetLineInfo(side Side, line Line) (*LineDetail, error) {
	t, err := r.GetTelemetry(line)
	if err != nil {
		return nil, err
	}
	if side == SideInput {
		return &t.Input, nil
	}
	return &t.Output, nil
}

func (r *TestVEBusReader) GetSoc() (float64, error) {
	t, err := r.GetTelemetry(L1)
	if err != nil {
		return 0, err
	}
	return t.SocPercent, nil
}

func (r *TestVEBusReader) GetState() (State, error) {
	t, err := r.GetTelemetry(L1)
	if err != nil {
		return 0, err
	}
	return t.State, nil
}

func (r *TestVEBusReader) GetMode() (Mode, error) {
	t, err := r.GetTelemetry(L1)
	if err != nil {
		return 0, err
	}
	return t.Mode, nil
}

func (r *TestVEBusReader) SetMode(mode Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Telemetry.Mode = mode
	return r.Err
}

func (r *TestVEBusReader) GetActiveInput() (ActiveInput, error) {
	t, err := r.GetTelemetry(L1)
	if err != nil {
		return 0, err
	}
	return t.ActiveInput, nil
}

func (r *TestVEBusReader) GetAlarms() ([]Alarm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Alarms != nil {
		return append([]Alarm(nil), r.Alarms...), nil
	}
	return AlarmSet(), nil
}

func (r *TestVEBusReader) SetACInputIgnore(line Line, ignore bool) error {
	_, err := ACInputIgnoreRegister(line)
	return err
}

func (r *TestVEBusReader) GetACInputIgnore(line Line) (bool, error) {
	_, err := ACInputIgnoreRegister(line)
	return false, err
}

// TestESSWriter records every command applied to it.
type TestESSWriter struct {
	mu          sync.Mutex
	Commands    []ESSCommand
	setPoint    map[Line]int16
	chargePower uint8
	feedInPower uint8
	Err         error
}

func CreateTestESSWriter() *TestESSWriter {
	return &TestESSWriter{
		setPoint:    map[Line]int16{},
		chargePower: PowerFullPercent,
		feedInPower: PowerFullPercent,
	}
}

func (w *TestESSWriter) Open() error {
	return nil
}

func (w *TestESSWriter) Close() error {
	return nil
}

func (w *TestESSWriter) GetPowerSetPoint(line Line) (int16, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setPoint[line], w.Err
}

func (w *TestESSWriter) SetPowerSetPoint(line Line, watt int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.setPoint[line] = watt
	return nil
}

func (w *TestESSWriter) GetChargePower() (uint8, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chargePower, w.Err
}

func (w *TestESSWriter) SetChargePower(percent uint8) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chargePower = percent
	return w.Err
}

func (w *TestESSWriter) GetFeedInPower() (uint8, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.feedInPower, w.Err
}

func (w *TestESSWriter) SetFeedInPower(percent uint8) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.feedInPower = percent
	return w.Err
}

func (w *TestESSWriter) Apply(cmd ESSCommand) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.Commands = append(w.Commands, cmd)
	w.setPoint[cmd.Line] = cmd.SetPointWatt
	w.chargePower = PowerPercent(!cmd.DisableCharge)
	w.feedInPower = PowerPercent(!cmd.DisableFeedIn)
	return nil
}

func (w *TestESSWriter) Applied() []ESSCommand {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]ESSCommand(nil), w.Commands...)
}

type TestBatteryReader struct {
	CapacityAh float64
}

func (b TestBatteryReader) Open() error {
	return nil
}

func (b TestBatteryReader) Close() error {
	return nil
}

func (b TestBatteryReader) GetCapacity() (float64, error) {
	return b.CapacityAh, nil
}
