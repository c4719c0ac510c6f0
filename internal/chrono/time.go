package chrono

import (
	"time"
)

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time in the configured location.
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct {
	location *time.Location
}

// NewStandardTime is the constructor of StandardTime, a nil location means UTC.
func NewStandardTime(location *time.Location) StandardTime {
	if location == nil {
		location = time.UTC
	}
	return StandardTime{location: location}
}

// LoadStandardTime resolves an IANA zone name ("" means UTC).
func LoadStandardTime(zone string) (StandardTime, error) {
	if zone == "" {
		return NewStandardTime(time.UTC), nil
	}
	location, err := time.LoadLocation(zone)
	if err != nil {
		return StandardTime{}, err
	}
	return NewStandardTime(location), nil
}

func (s StandardTime) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardTime) Location() *time.Location {
	return s.location
}

// Fixed always returns the same instant, it is used to pin run dates in tests
// and for backfilling a specific day from the CLI.
type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f)
}
