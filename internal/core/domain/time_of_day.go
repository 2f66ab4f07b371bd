package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

// TimeOfDay is a wall clock time with minute resolution.
type TimeOfDay struct {
	hour   uint8
	minute uint8
}

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: hour %d minute %d out of range", ErrInvalidTimeOfDay, hour, minute)
	}
	return TimeOfDay{hour: uint8(hour), minute: uint8(minute)}, nil
}

// ParseTimeOfDay parses "H:MM" or "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidTimeOfDay, s)
	}
	hour, err := parseClockField(hh)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q: bad hour", ErrInvalidTimeOfDay, s)
	}
	minute, err := parseClockField(mm)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q: bad minute", ErrInvalidTimeOfDay, s)
	}
	return NewTimeOfDay(hour, minute)
}

func parseClockField(s string) (int, error) {
	if len(s) == 0 || len(s) > 2 {
		return 0, strconv.ErrSyntax
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}

func (t TimeOfDay) Hour() int {
	return int(t.hour)
}

func (t TimeOfDay) Minute() int {
	return int(t.minute)
}

func (t TimeOfDay) MinuteOfDay() int {
	return int(t.hour)*60 + int(t.minute)
}

func (t TimeOfDay) Compare(o TimeOfDay) int {
	return t.MinuteOfDay() - o.MinuteOfDay()
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.Compare(o) < 0
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.hour, t.minute)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(text []byte) error {
	v, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
