package domain

import "time"

// Interval is the half-open span [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start time.Time, length time.Duration) Interval {
	return Interval{Start: start, End: start.Add(length)}
}

func (i Interval) Overlaps(other Interval) bool {
	return Overlaps(i.Start, i.End, other.Start, other.End)
}

// Overlaps reports whether [existingStart, existingEnd) and [candidateStart, candidateEnd)
// share any instant. Touching intervals do not overlap.
func Overlaps(existingStart, existingEnd, candidateStart, candidateEnd time.Time) bool {
	return candidateStart.Before(existingEnd) && existingStart.Before(candidateEnd)
}
