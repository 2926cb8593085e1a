package chrono

import "time"

// API is the interface that anything depending on the system clock should use.
type API interface {
	Now() time.Time
	Location() *time.Location
}

type StandardImpl struct {
	location *time.Location
}

// NewStandardImpl loads the given IANA location, an empty name means the
// local timezone of the machine.
func NewStandardImpl(locationName string) (StandardImpl, error) {
	if locationName == "" {
		return StandardImpl{location: time.Local}, nil
	}
	location, err := time.LoadLocation(locationName)
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

// Fixed always returns the same instant.
type Fixed struct {
	Time time.Time
}

func (f Fixed) Now() time.Time {
	return f.Time
}

func (f Fixed) Location() *time.Location {
	return f.Time.Location()
}
