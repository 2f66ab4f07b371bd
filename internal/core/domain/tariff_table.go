package domain

import (
	"fmt"
	"math"
)

const minutesPerWeek = daysPerWeek * minutesPerDay

// TariffTable is the full set of rates plus the depth of discharge, loaded
// once and replaced as a whole.
type TariffTable struct {
	Rates []Rate
	// fraction of capacity that may be drawn down, 1-DepthOfDischarge is the protected floor
	DepthOfDischarge float64
}

// Validate checks every rate and rejects windows of different rates that
// overlap in the weekly cycle. An empty table is valid.
func (t TariffTable) Validate() error {
	if math.IsNaN(t.DepthOfDischarge) || t.DepthOfDischarge <= 0 || t.DepthOfDischarge > 1 {
		return fmt.Errorf("%w: depth of discharge %v must be in (0, 1]", ErrConfiguration, t.DepthOfDischarge)
	}
	names := make(map[string]struct{}, len(t.Rates))
	for i := range t.Rates {
		r := &t.Rates[i]
		if r.Name == "" {
			return fmt.Errorf("%w: rate #%d has no name", ErrInvalidRate, i)
		}
		if _, ok := names[r.Name]; ok {
			return fmt.Errorf("%w: duplicated rate name %q", ErrInvalidRate, r.Name)
		}
		names[r.Name] = struct{}{}
		if err := validateRate(r); err != nil {
			return err
		}
	}
	return t.checkOverlaps()
}

func validateRate(r *Rate) error {
	if r.Reserve < 0 || math.IsNaN(r.Reserve) {
		return fmt.Errorf("%w: rate %q: negative reserve", ErrInvalidRate, r.Name)
	}
	switch p := r.EffectiveDischarge().(type) {
	case DischargeProportionalToLoad:
		if p.Fraction < 0 || math.IsNaN(p.Fraction) {
			return fmt.Errorf("%w: rate %q: negative discharge fraction", ErrInvalidPolicy, r.Name)
		}
	}
	switch p := r.Charge.(type) {
	case ChargeTargetCapacity:
		if p.Fraction < 0 || p.Fraction > 1 || math.IsNaN(p.Fraction) {
			return fmt.Errorf("%w: rate %q: charge target %v must be in [0, 1]", ErrInvalidPolicy, r.Name, p.Fraction)
		}
	}
	for _, w := range r.Windows {
		for _, d := range w.Days {
			if !d.Valid() {
				return fmt.Errorf("%w: rate %q: %v", ErrInvalidWeekday, r.Name, d)
			}
		}
	}
	return nil
}

type weeklySpan struct {
	rate   string
	window RateWindow
	day    Weekday
	start  int
	end    int
}

// checkOverlaps compares every weekly span of every rate against the spans of
// the other rates. Ends are inclusive, the same as Occurrence.Contains.
func (t TariffTable) checkOverlaps() error {
	var spans []weeklySpan
	for _, r := range t.Rates {
		for _, w := range r.Windows {
			for _, d := range w.Days {
				start := int(d)*minutesPerDay + w.Start.MinuteOfDay()
				spans = append(spans, weeklySpan{
					rate:   r.Name,
					window: w,
					day:    d,
					start:  start,
					end:    start + w.PeriodMinutes(),
				})
			}
		}
	}
	for i := range spans {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			if a.rate == b.rate {
				continue
			}
			if spansOverlap(a, b) {
				return fmt.Errorf("%w: %q (%s on %s) and %q (%s on %s)", ErrOverlappingWindows,
					a.rate, a.window.Start.String()+"-"+a.window.End.String(), a.day,
					b.rate, b.window.Start.String()+"-"+b.window.End.String(), b.day)
			}
		}
	}
	return nil
}

func spansOverlap(a, b weeklySpan) bool {
	// a Sunday window crossing midnight wraps into Monday of the next week
	for _, shift := range []int{-minutesPerWeek, 0, minutesPerWeek} {
		if a.start <= b.end+shift && b.start+shift <= a.end {
			return true
		}
	}
	return false
}
