package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Weekday orders days Monday first.
type Weekday uint8

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

const daysPerWeek = 7

var AllWeekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayNames = [daysPerWeek]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// WeekdayOf converts a time.Weekday (Sunday first) into a Weekday.
func WeekdayOf(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % daysPerWeek)
}

// DaysFrom returns how many days to advance from `from` to reach `to`, in 0..6.
func DaysFrom(from, to Weekday) int {
	return ((int(to)-int(from))%daysPerWeek + daysPerWeek) % daysPerWeek
}

func (d Weekday) Valid() bool {
	return d < daysPerWeek
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("weekday(%d)", uint8(d))
	}
	return weekdayNames[d]
}

func (d Weekday) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(text []byte) error {
	v, err := ParseWeekday(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseWeekday accepts full or three letter english names, case insensitive.
func ParseWeekday(s string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range weekdayNames {
		if name == n || (len(name) == 3 && strings.HasPrefix(n, name)) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}

// ParseWeekdays parses day names plus the shorthands all, weekdays and weekend.
// The result is sorted and free of duplicates.
func ParseWeekdays(names []string) ([]Weekday, error) {
	var days []Weekday
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "all", "daily":
			days = append(days, AllWeekdays...)
		case "weekdays":
			days = append(days, Monday, Tuesday, Wednesday, Thursday, Friday)
		case "weekend":
			days = append(days, Saturday, Sunday)
		default:
			d, err := ParseWeekday(n)
			if err != nil {
				return nil, err
			}
			days = append(days, d)
		}
	}
	slices.Sort(days)
	return slices.Compact(days), nil
}
