// Package timeutil holds the calendar-day helpers behind daily quota resets.
// All boundaries are computed in an explicit reference location so callers
// never compare formatted date strings.
package timeutil

import "time"

// Clock returns the current instant. Services take a Clock so tests can pin
// "now" to either side of a day boundary.
type Clock func() time.Time

// SystemClock is the production Clock.
func SystemClock() time.Time { return time.Now() }

// EnsureLocation returns UTC when loc is nil.
func EnsureLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// TruncateToDay normalizes the timestamp to midnight in the provided zone.
func TruncateToDay(t time.Time, loc *time.Location) time.Time {
	loc = EnsureLocation(loc)
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// NextMidnight returns the first instant of the day after t in loc.
// Days are not assumed to be 24h long (DST transitions).
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	d := TruncateToDay(t, loc)
	return time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, d.Location())
}

// DayBounds returns the [start, end) interval of t's calendar day in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	return TruncateToDay(t, loc), NextMidnight(t, loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
// A zero a (never reset) is never on the same day as anything.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if a.IsZero() {
		return false
	}
	return TruncateToDay(a, loc).Equal(TruncateToDay(b, loc))
}
