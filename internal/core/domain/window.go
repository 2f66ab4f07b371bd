package domain

import (
	"fmt"
	"slices"
	"time"
)

// RateWindow is a recurring interval that begins on each of Days at Start and
// lasts until End, crossing midnight when End is before Start.
type RateWindow struct {
	Start TimeOfDay
	End   TimeOfDay
	Days  []Weekday
}

// Occurrence is one absolute instance of a RateWindow.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in [Start, End].
func (o Occurrence) Contains(t time.Time) bool {
	return !t.Before(o.Start) && !t.After(o.End)
}

func (o Occurrence) Duration() time.Duration {
	return o.End.Sub(o.Start)
}

// PeriodMinutes is the window length in minutes, in 0..1439.
func (w RateWindow) PeriodMinutes() int {
	v := w.End.MinuteOfDay() - w.Start.MinuteOfDay()
	if v < 0 {
		v += minutesPerDay
	}
	return v
}

func (w RateWindow) Period() time.Duration {
	return time.Duration(w.PeriodMinutes()) * time.Minute
}

func (w RateWindow) CrossesMidnight() bool {
	return w.End.Before(w.Start)
}

func (w RateWindow) String() string {
	return fmt.Sprintf("%s-%s %v", w.Start, w.End, w.Days)
}

// Resolve returns one occurrence per configured day: the one in effect at ref
// or the next one to start after it, ordered by start. Day boundaries are
// evaluated in loc.
func (w RateWindow) Resolve(ref time.Time, loc *time.Location) []Occurrence {
	if len(w.Days) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	days := slices.Clone(w.Days)
	slices.Sort(days)
	days = slices.Compact(days)

	// start from the day before ref so a window that began yesterday and
	// crosses midnight is still found
	anchor := ref.Add(-24 * time.Hour).In(loc)
	anchorDay := WeekdayOf(anchor.Weekday())
	year, month, day := anchor.Date()
	period := w.Period()

	occurrences := make([]Occurrence, 0, len(days))
	for _, d := range days {
		if !d.Valid() {
			continue
		}
		offset := DaysFrom(anchorDay, d)
		start := time.Date(year, month, day+offset, w.Start.Hour(), w.Start.Minute(), 0, 0, loc)
		occ := Occurrence{Start: start, End: start.Add(period)}
		if occ.Start.Before(ref) && !occ.Contains(ref) {
			// already over, take the same weekday of the following week
			start = time.Date(year, month, day+offset+daysPerWeek, w.Start.Hour(), w.Start.Minute(), 0, 0, loc)
			occ = Occurrence{Start: start, End: start.Add(period)}
		}
		occurrences = append(occurrences, occ)
	}
	slices.SortStableFunc(occurrences, func(a, b Occurrence) int {
		return a.Start.Compare(b.Start)
	})
	return occurrences
}
