package metrics

import (
	"errors"
	"time"

	"github.com/berfenger/smartess/internal/core/domain"
	"github.com/berfenger/smartess/internal/core/port"
	"github.com/berfenger/smartess/pkg/victron_modbus"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "smartess"

// DispatchMetrics exports every dispatch tick and Modbus call timing.
type DispatchMetrics struct {
	ticks       *prometheus.CounterVec
	failures    *prometheus.CounterVec
	tickSeconds prometheus.Histogram
	modbus      *prometheus.HistogramVec

	regime           *prometheus.GaugeVec
	setPoint         prometheus.Gauge
	gridLoad         prometheus.Gauge
	batteryLoad      prometheus.Gauge
	systemLoad       prometheus.Gauge
	soc              prometheus.Gauge
	usingCapacity    prometheus.Gauge
	reserveCapacity  prometheus.Gauge
	hoursUntilCharge prometheus.Gauge
}

var _ port.DispatchObserver = (*DispatchMetrics)(nil)

// NewDispatchMetrics registers the collectors on reg, or the default
// registerer when reg is nil. Collectors already registered are reused.
func NewDispatchMetrics(reg prometheus.Registerer) (*DispatchMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &DispatchMetrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_ticks_total",
			Help:      "Dispatch ticks by regime and whether the command was written",
		}, []string{"regime", "applied"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Failed dispatch ticks by stage",
		}, []string{"stage"}),
		tickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_tick_seconds",
			Help:      "Duration of a dispatch tick",
			Buckets:   prometheus.DefBuckets,
		}),
		modbus: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "modbus_call_seconds",
			Help:      "Duration of Modbus calls to the GX device",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"fn"}),
		regime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_regime",
			Help:      "1 for the regime of the last decision",
		}, []string{"regime"}),
		setPoint:         gauge("dispatch_set_point_watts", "Grid set point written to the ESS"),
		gridLoad:         gauge("dispatch_grid_load_watts", "Desired grid import"),
		batteryLoad:      gauge("dispatch_battery_load_watts", "Desired battery discharge"),
		systemLoad:       gauge("system_load_watts", "AC consumption seen by the inverter"),
		soc:              gauge("battery_soc_ratio", "Battery state of charge"),
		usingCapacity:    gauge("battery_using_capacity_kwh", "Capacity left to spend before the next charge"),
		reserveCapacity:  gauge("battery_reserve_capacity_kwh", "Capacity held back for upcoming rates"),
		hoursUntilCharge: gauge("dispatch_hours_until_charge", "Hours until the next charge window"),
	}

	var err error
	m.ticks, err = register(reg, m.ticks)
	if err != nil {
		return nil, err
	}
	if m.failures, err = register(reg, m.failures); err != nil {
		return nil, err
	}
	if m.tickSeconds, err = register(reg, m.tickSeconds); err != nil {
		return nil, err
	}
	if m.modbus, err = register(reg, m.modbus); err != nil {
		return nil, err
	}
	if m.regime, err = register(reg, m.regime); err != nil {
		return nil, err
	}
	for _, g := range []*prometheus.Gauge{&m.setPoint, &m.gridLoad, &m.batteryLoad, &m.systemLoad,
		&m.soc, &m.usingCapacity, &m.reserveCapacity, &m.hoursUntilCharge} {
		if *g, err = register(reg, *g); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *DispatchMetrics) ObserveDispatch(rec domain.DispatchRecord, out *domain.ControllerOutputState, duration time.Duration) {
	m.tickSeconds.Observe(duration.Seconds())
	m.systemLoad.Set(rec.SystemLoad)
	m.soc.Set(rec.Soc)
	if out == nil {
		return
	}
	applied := "false"
	if rec.Applied {
		applied = "true"
	}
	m.ticks.WithLabelValues(out.Regime.String(), applied).Inc()
	for _, r := range []domain.Regime{domain.RegimeCharging, domain.RegimeDischarging} {
		v := 0.0
		if r == out.Regime {
			v = 1
		}
		m.regime.WithLabelValues(r.String()).Set(v)
	}
	m.setPoint.Set(float64(rec.SetPointWatt))
	m.gridLoad.Set(out.GridLoad)
	m.batteryLoad.Set(out.BatteryLoad)
	m.usingCapacity.Set(out.UsingCapacity)
	m.reserveCapacity.Set(out.ReserveCapacity)
	m.hoursUntilCharge.Set(out.HoursUntilCharge)
}

func (m *DispatchMetrics) ObserveFailure(stage string) {
	m.failures.WithLabelValues(stage).Inc()
}

// ModbusInstrument times every call made by the victron_modbus clients.
func (m *DispatchMetrics) ModbusInstrument() *victron_modbus.ModbusInstrument {
	return &victron_modbus.ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			m.modbus.WithLabelValues(fnName).Observe(readTime.Seconds())
		},
	}
}
