package domain

import "errors"

var (
	// ErrConfiguration is returned when the tariff table cannot produce a schedule.
	ErrConfiguration = errors.New("tariff configuration error")
	// ErrNoNextCharge is returned when no rate in the table enables charging.
	ErrNoNextCharge = errors.New("no next charge rate found")
	// ErrNoNextRate is returned when the merged schedule has fewer than two entries.
	ErrNoNextRate = errors.New("no next rate found")

	ErrInvalidTimeOfDay   = errors.New("invalid time of day")
	ErrInvalidWeekday     = errors.New("invalid weekday")
	ErrInvalidPolicy      = errors.New("invalid rate policy")
	ErrInvalidRate        = errors.New("invalid rate")
	ErrOverlappingWindows = errors.New("overlapping rate windows")
)
