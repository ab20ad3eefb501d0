package aggregation

import "time"

const secondsPerDay = 24 * 60 * 60

func dayStart(unix int64) int64 {
	r := unix % secondsPerDay
	if r < 0 {
		r += secondsPerDay
	}
	return unix - r
}

func monthStart(unix int64) time.Time {
	t := time.Unix(unix, 0).UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// monthsBetween returns the fractional number of calendar months from a to b.
// The fraction is the share of the month following the last whole month.
func monthsBetween(a, b time.Time) float64 {
	if b.Before(a) {
		return -monthsBetween(b, a)
	}
	whole := (b.Year()-a.Year())*12 + int(b.Month()-a.Month())
	anchor := a.AddDate(0, whole, 0)
	if anchor.After(b) {
		whole--
		anchor = a.AddDate(0, whole, 0)
	}
	next := a.AddDate(0, whole+1, 0)
	return float64(whole) + b.Sub(anchor).Seconds()/next.Sub(anchor).Seconds()
}
