package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/berfenger/smartess/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveDispatch(t *testing.T) {

	reg := prometheus.NewRegistry()
	m, err := NewDispatchMetrics(reg)
	require.NoError(t, err)

	rec := domain.DispatchRecord{SystemLoad: 1450, Soc: 0.645, SetPointWatt: 1108, Applied: true}
	out := &domain.ControllerOutputState{
		Regime:           domain.RegimeDischarging,
		GridLoad:         1107.7,
		BatteryLoad:      342.3,
		UsingCapacity:    4.45,
		ReserveCapacity:  1,
		HoursUntilCharge: 13,
	}
	m.ObserveDispatch(rec, out, 120*time.Millisecond)
	m.ObserveDispatch(rec, out, 80*time.Millisecond)

	expected := `
# HELP smartess_dispatch_ticks_total Dispatch ticks by regime and whether the command was written
# TYPE smartess_dispatch_ticks_total counter
smartess_dispatch_ticks_total{applied="true",regime="discharging"} 2
`
	require.NoError(t, testutil.CollectAndCompare(m.ticks, strings.NewReader(expected)))

	assert.Equal(t, 1108.0, testutil.ToFloat64(m.setPoint))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reserveCapacity))
	assert.Equal(t, 13.0, testutil.ToFloat64(m.hoursUntilCharge))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.regime.WithLabelValues("discharging")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.regime.WithLabelValues("charging")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.tickSeconds))
}

func TestObserveFailedTick(t *testing.T) {

	m, err := NewDispatchMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveFailure("telemetry")
	m.ObserveDispatch(domain.DispatchRecord{Error: "telemetry: timeout"}, nil, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("telemetry")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.ticks), "no decision, no tick by regime")
}

func TestModbusInstrument(t *testing.T) {

	m, err := NewDispatchMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	inst := m.ModbusInstrument()
	inst.RecordTime("GetTelemetry", 15*time.Millisecond)
	inst.RecordTime("Apply", 30*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(m.modbus))
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {

	reg := prometheus.NewRegistry()
	first, err := NewDispatchMetrics(reg)
	require.NoError(t, err)
	second, err := NewDispatchMetrics(reg)
	require.NoError(t, err)

	first.ObserveFailure("apply")
	assert.Equal(t, 1.0, testutil.ToFloat64(second.failures.WithLabelValues("apply")))
}
