package domain

import "time"

type Regime uint8

const (
	RegimeUnknown Regime = iota
	RegimeCharging
	RegimeDischarging
)

func (r Regime) String() string {
	switch r {
	case RegimeCharging:
		return "charging"
	case RegimeDischarging:
		return "discharging"
	default:
		return "unknown"
	}
}

// ControllerInputState is the per tick snapshot of the energy system.
type ControllerInputState struct {
	SystemLoad float64 // W
	Soc        float64 // 0..1
	Capacity   float64 // kWh
	Voltage    float64 // V, informational
}

// ControllerOutputState is the dispatch decision for one tick.
type ControllerOutputState struct {
	Regime        Regime
	DisableCharge bool
	DisableFeedIn bool
	// state of charge above the depth of discharge floor while discharging
	Soc         float64
	GridLoad    float64 // W
	BatteryLoad float64 // W
	// kWh above the floor before the reserve is taken out
	AvailableCapacity float64
	UsingCapacity     float64 // kWh
	ReserveCapacity   float64 // kWh
	HoursUntilCharge  float64
	ChargeTarget      ChargePolicy
	CurrentRate       ScheduleEntry
	NextRate          ScheduleEntry
	NextCharge        ScheduleEntry
}

// DispatchCommand is what the actuator writes to the ESS.
type DispatchCommand struct {
	SetPointWatt  int16
	DisableCharge bool
	DisableFeedIn bool
}

// DispatchRecord is the outcome of one tick as kept in the history.
type DispatchRecord struct {
	Time          time.Time
	Regime        Regime
	Rate          string
	NextCharge    time.Time
	SystemLoad    float64
	Soc           float64
	GridLoad      float64
	BatteryLoad   float64
	UsingCapacity float64
	Reserve       float64
	SetPointWatt  int16
	Applied       bool
	Error         string
}

// ParseRegime is the inverse of Regime.String. Unknown names give RegimeUnknown.
func ParseRegime(s string) Regime {
	switch s {
	case "charging":
		return RegimeCharging
	case "discharging":
		return RegimeDischarging
	default:
		return RegimeUnknown
	}
}
