package service

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/berfenger/smartess/internal/core/domain"
	"github.com/berfenger/smartess/internal/core/port"
)

const (
	DefaultMaxGridImportWatt = 32000

	// float noise below these is treated as zero
	socEpsilon      = 1e-9
	capacityEpsilon = 1e-9
)

type ControllerOptions struct {
	// Location decides local midnight and weekdays. Defaults to time.Local.
	Location *time.Location
	// MaxGridImportWatt is the grid set point used while charging.
	MaxGridImportWatt float64
}

// DispatchController is the tariff schedule engine and dispatch decision.
// It is immutable once built; reloading a table means building a new one.
type DispatchController struct {
	rates             []*domain.Rate
	depthOfDischarge  float64
	location          *time.Location
	maxGridImportWatt float64
}

func NewDispatchController(table domain.TariffTable, opts ControllerOptions) (*DispatchController, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxGridImportWatt <= 0 {
		opts.MaxGridImportWatt = DefaultMaxGridImportWatt
	}
	rates := make([]*domain.Rate, len(table.Rates))
	for i := range table.Rates {
		r := table.Rates[i]
		r.Windows = slices.Clone(r.Windows)
		rates[i] = &r
	}
	return &DispatchController{
		rates:             rates,
		depthOfDischarge:  table.DepthOfDischarge,
		location:          opts.Location,
		maxGridImportWatt: opts.MaxGridImportWatt,
	}, nil
}

func (c *DispatchController) Rates() []*domain.Rate {
	return slices.Clone(c.rates)
}

func (c *DispatchController) DepthOfDischarge() float64 {
	return c.depthOfDischarge
}

func (c *DispatchController) Location() *time.Location {
	return c.location
}

func (c *DispatchController) MaxGridImportPower() float64 {
	return c.maxGridImportWatt
}

// GetSchedule merges the occurrences of every rate, ordered by start. Entries
// with the same start keep table order.
func (c *DispatchController) GetSchedule(now time.Time) []domain.ScheduleEntry {
	var schedule []domain.ScheduleEntry
	for _, r := range c.rates {
		for _, occ := range r.Resolve(now, c.location) {
			schedule = append(schedule, domain.ScheduleEntry{Rate: r, Occurrence: occ})
		}
	}
	slices.SortStableFunc(schedule, func(a, b domain.ScheduleEntry) int {
		return a.Start.Compare(b.Start)
	})
	return schedule
}

func (c *DispatchController) NextCharge(now time.Time) (domain.ScheduleEntry, error) {
	return firstChargeEntry(c.GetSchedule(now))
}

func (c *DispatchController) DesiredState(now time.Time, in domain.ControllerInputState) (domain.ControllerOutputState, error) {
	schedule := c.GetSchedule(now)
	if len(schedule) == 0 {
		return domain.ControllerOutputState{}, fmt.Errorf("%w: no rate has an active or upcoming window", domain.ErrConfiguration)
	}
	current := schedule[0]

	if current.Rate.ChargeEnabled() {
		next, err := nextRate(schedule)
		if err != nil {
			return domain.ControllerOutputState{}, err
		}
		return domain.ControllerOutputState{
			Regime:        domain.RegimeCharging,
			DisableCharge: false,
			DisableFeedIn: true,
			Soc:           in.Soc,
			GridLoad:      c.maxGridImportWatt,
			BatteryLoad:   0,
			ChargeTarget:  current.Rate.Charge,
			CurrentRate:   current,
			NextRate:      next,
			NextCharge:    current,
		}, nil
	}

	nextCharge, err := firstChargeEntry(schedule)
	if err != nil {
		return domain.ControllerOutputState{}, err
	}
	next, err := nextRate(schedule)
	if err != nil {
		return domain.ControllerOutputState{}, err
	}

	reserve := reserveBefore(schedule, nextCharge, now)

	socAbove := math.Max(0, in.Soc-(1-c.depthOfDischarge))
	if socAbove < socEpsilon {
		socAbove = 0
	}
	available := in.Capacity * socAbove
	remaining := math.Max(0, available-reserve)
	if remaining < capacityEpsilon {
		remaining = 0
	}

	hours := math.Floor(nextCharge.Start.Sub(now).Minutes()) / 60

	var batteryLoad float64
	switch p := current.Rate.EffectiveDischarge().(type) {
	case domain.DischargeSpread:
		if hours > 0 {
			batteryLoad = remaining / hours * 1000
		}
	case domain.DischargeProportionalToLoad:
		batteryLoad = in.SystemLoad * p.Fraction
	}
	batteryLoad = math.Max(0, batteryLoad)

	return domain.ControllerOutputState{
		Regime:            domain.RegimeDischarging,
		DisableCharge:     true,
		DisableFeedIn:     remaining == 0 || batteryLoad == 0,
		Soc:               socAbove,
		GridLoad:          math.Max(0, in.SystemLoad-batteryLoad),
		BatteryLoad:       batteryLoad,
		AvailableCapacity: available,
		UsingCapacity:     remaining,
		ReserveCapacity:   reserve,
		HoursUntilCharge:  hours,
		ChargeTarget:      current.Rate.Charge,
		CurrentRate:       current,
		NextRate:          next,
		NextCharge:        nextCharge,
	}, nil
}

// reserveBefore sums the reserve of the upcoming entries that start before
// the next charge. The entry running at now is not upcoming.
func reserveBefore(schedule []domain.ScheduleEntry, nextCharge domain.ScheduleEntry, now time.Time) float64 {
	var reserve float64
	for _, e := range schedule {
		if !e.Start.Before(nextCharge.Start) {
			break
		}
		if e.Contains(now) {
			continue
		}
		reserve += e.Rate.Reserve
	}
	return reserve
}

func firstChargeEntry(schedule []domain.ScheduleEntry) (domain.ScheduleEntry, error) {
	for _, e := range schedule {
		if e.Rate.ChargeEnabled() {
			return e, nil
		}
	}
	return domain.ScheduleEntry{}, domain.ErrNoNextCharge
}

func nextRate(schedule []domain.ScheduleEntry) (domain.ScheduleEntry, error) {
	if len(schedule) < 2 {
		return domain.ScheduleEntry{}, domain.ErrNoNextRate
	}
	return schedule[1], nil
}

var _ port.DispatchController = (*DispatchController)(nil)
