// Package pacing maps a repository's history length to renderer pacing.
//
// The goal is a watchable video regardless of repository size: short
// histories dwell longer on each day, long histories compress, and the
// total runtime stays inside a bounded range.
package pacing

// Pacing bounds. Target total duration interpolates between MinDuration
// and MaxDuration as distinct-day count approaches DayThreshold; above
// the threshold the target is pinned at MaxDuration. The per-day result
// is clamped so tiny histories cannot blow up the division.
const (
	MinDuration  = 60.0
	MaxDuration  = 100.0
	DayThreshold = 1000

	MinSecondsPerDay = 0.00001
	MaxSecondsPerDay = 2.0
)

// SecondsPerDay returns how long one day of history is displayed in the
// rendered video. Pure and deterministic; this is the single place that
// governs perceived pacing.
func SecondsPerDay(distinctDays int) float64 {
	if distinctDays <= 0 {
		// Nothing to divide into. An empty history renders as a still
		// frame either way, so pin to the floor.
		return MinSecondsPerDay
	}

	var target float64
	if distinctDays <= DayThreshold {
		target = MinDuration + (MaxDuration-MinDuration)*float64(distinctDays)/float64(DayThreshold)
	} else {
		target = MaxDuration
	}

	perDay := target / float64(distinctDays)
	return clamp(perDay, MinSecondsPerDay, MaxSecondsPerDay)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
