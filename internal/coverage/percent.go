package coverage

// RoundPercent returns 100*covered/total rounded half-up to two decimals,
// or 0 when total is 0. Integer arithmetic keeps the rounding exact.
func RoundPercent(covered, total int) float64 {
	if total <= 0 {
		return 0
	}
	c := int64(covered)
	t := int64(total)
	hundredths := (20000*c + t) / (2 * t)
	return float64(hundredths) / 100
}
