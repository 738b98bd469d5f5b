package timeline

// Overlaps reports whether [a0,a1] and [b0,b1] overlap. Either interval
// containing a boundary of the other counts, so intervals that only touch
// overlap too.
func Overlaps(a0, a1, b0, b1 float64) bool {
	return within(b0, a0, a1) ||
		within(b1, a0, a1) ||
		within(a0, b0, b1) ||
		within(a1, b0, b1)
}

func within(t, lo, hi float64) bool {
	return lo <= t && t <= hi
}

// overlapSeconds returns the length of the intersection of two intervals.
// Touching intervals overlap for zero seconds.
func overlapSeconds(a0, a1, b0, b1 float64) float64 {
	lo := max(a0, b0)
	hi := min(a1, b1)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

func turnOverlaps(t Turn, u *Utterance) bool {
	return Overlaps(t.Start, t.End, u.Start, u.End)
}
