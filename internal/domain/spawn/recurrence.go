package spawn

import "time"

// Advance returns a copy of t whose pair is current as of now.
//
// LastOccurrence becomes the latest boundary original.LastOccurrence + k*interval (k >= 0)
// that is not after now, and NextOccurrence follows it by one interval. The number of elapsed
// intervals is computed in closed form, so a gap of any size costs the same.
// A timer whose last occurrence is still in the future only has its NextOccurrence re-derived.
func Advance(t FixedIntervalTimer, now time.Time) FixedIntervalTimer {
	if !ValidInterval(t.IntervalSeconds) {
		return t
	}
	interval := t.Interval()
	if t.LastOccurrence.After(now) {
		t.NextOccurrence = t.LastOccurrence.Add(interval)
		return t
	}

	elapsed := now.Sub(t.LastOccurrence)
	cycles := elapsed / interval
	t.LastOccurrence = t.LastOccurrence.Add(cycles * interval)
	t.NextOccurrence = t.LastOccurrence.Add(interval)
	return t
}

// NeedsAdvance reports whether Advance would move the last occurrence.
func NeedsAdvance(t FixedIntervalTimer, now time.Time) bool {
	return ValidInterval(t.IntervalSeconds) && !t.LastOccurrence.Add(t.Interval()).After(now)
}
