package core

import (
	"time"
)

// Clock returns the current time. Production code uses time.Now; tests pin it.
type Clock func() time.Time

// SystemClock is the wall clock in UTC
func SystemClock() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a clock that always reports t
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// LedgerTimeFormat is the timestamp layout used in provenance descriptions and exports
const LedgerTimeFormat = "2006-01-02 15:04:05"
