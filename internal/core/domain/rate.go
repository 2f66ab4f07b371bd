package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Rate is a named tariff bound to one or more recurring windows.
type Rate struct {
	Name string
	// cost of one kWh imported while the rate is active
	UnitCost  decimal.Decimal
	Windows   []RateWindow
	Discharge DischargePolicy
	Charge    ChargePolicy
	// kWh withheld from discharge for this rate while it is upcoming before the next charge
	Reserve float64
}

// DischargePolicy is one of DischargeDisabled, DischargeProportionalToLoad or DischargeSpread.
type DischargePolicy interface {
	fmt.Stringer
	isDischargePolicy()
}

type DischargeDisabled struct{}

// DischargeProportionalToLoad makes the battery supply Fraction of the system load.
type DischargeProportionalToLoad struct {
	Fraction float64
}

// DischargeSpread drains the usable capacity evenly until the next charge window.
type DischargeSpread struct{}

func (DischargeDisabled) isDischargePolicy()           {}
func (DischargeProportionalToLoad) isDischargePolicy() {}
func (DischargeSpread) isDischargePolicy()             {}

func (DischargeDisabled) String() string { return "disabled" }
func (p DischargeProportionalToLoad) String() string {
	return fmt.Sprintf("proportional(%.2f)", p.Fraction)
}
func (DischargeSpread) String() string { return "spread" }

// ChargePolicy is one of ChargeDisabled or ChargeTargetCapacity.
type ChargePolicy interface {
	fmt.Stringer
	Enabled() bool
	isChargePolicy()
}

type ChargeDisabled struct{}

// ChargeTargetCapacity enables the charger. Fraction and UnitLimit are passed
// through to the actuator untouched.
type ChargeTargetCapacity struct {
	Fraction  float64
	UnitLimit uint16
}

func (ChargeDisabled) isChargePolicy()       {}
func (ChargeTargetCapacity) isChargePolicy() {}

func (ChargeDisabled) Enabled() bool       { return false }
func (ChargeTargetCapacity) Enabled() bool { return true }

func (ChargeDisabled) String() string { return "disabled" }
func (p ChargeTargetCapacity) String() string {
	return fmt.Sprintf("target(%.2f)", p.Fraction)
}

func (r *Rate) ChargeEnabled() bool {
	return r.Charge != nil && r.Charge.Enabled()
}

// EffectiveDischarge never returns nil.
func (r *Rate) EffectiveDischarge() DischargePolicy {
	if r.Discharge == nil {
		return DischargeDisabled{}
	}
	return r.Discharge
}

// Resolve flattens the occurrences of every window of the rate, ordered by start.
func (r *Rate) Resolve(ref time.Time, loc *time.Location) []Occurrence {
	var occurrences []Occurrence
	for _, w := range r.Windows {
		occurrences = append(occurrences, w.Resolve(ref, loc)...)
	}
	slices.SortStableFunc(occurrences, func(a, b Occurrence) int {
		return a.Start.Compare(b.Start)
	})
	return occurrences
}

// ScheduleEntry is an occurrence tagged with the rate that owns it.
type ScheduleEntry struct {
	Rate *Rate
	Occurrence
}

func (e ScheduleEntry) IsZero() bool {
	return e.Rate == nil
}

func (e ScheduleEntry) String() string {
	if e.Rate == nil {
		return "none"
	}
	return fmt.Sprintf("%s@%s", e.Rate.Name, e.Start.Format(time.RFC3339))
}
