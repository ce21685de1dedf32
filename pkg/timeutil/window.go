package timeutil

import "time"

// EndFromStartAndDays computes the exclusive end of a reservation window:
// end = start + days whole days. Callers reject days < 1 before calling.
func EndFromStartAndDays(start time.Time, days int) time.Time {
	return start.Add(time.Duration(days) * 24 * time.Hour)
}
