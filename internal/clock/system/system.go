// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements bookmark.Clock.
type Clock struct{}

// New creates a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to microseconds, the
// resolution Postgres keeps for timestamptz, so values read back compare
// equal to the ones written.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
