// Package scheduling computes free appointment slots and holds the rule deciding which existing
// bookings a candidate appointment competes with.
package scheduling

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"garagebook/internal/domain"
)

// Window is the working day as offsets from local midnight.
type Window struct {
	Start time.Duration
	End   time.Duration
}

var DefaultWindow = Window{Start: 9 * time.Hour, End: 17 * time.Hour}

// ParseWindow parses two HH:MM clock times.
func ParseWindow(start, end string) (Window, error) {
	s, err := parseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("window start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("window end: %w", err)
	}
	if e <= s {
		return Window{}, fmt.Errorf("window end %s must be after start %s", end, start)
	}
	return Window{Start: s, End: e}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func (w Window) Length() time.Duration {
	return w.End - w.Start
}

type Generator struct {
	Window   Window
	Location *time.Location
}

func (g Generator) location() *time.Location {
	if g.Location == nil {
		return time.Local
	}
	return g.Location
}

// Bounds resolves the window against the calendar date of date in the generator's location.
// Wall clock arithmetic keeps the window stable across DST transitions.
func (g Generator) Bounds(date time.Time) domain.Interval {
	loc := g.location()
	y, m, d := date.In(loc).Date()
	at := func(offset time.Duration) time.Time {
		return time.Date(y, m, d, 0, int(offset/time.Minute), 0, 0, loc)
	}
	return domain.Interval{Start: at(g.Window.Start), End: at(g.Window.End)}
}

// Slots yields the free start times on date for an appointment of the given duration.
//
// The walk starts at the window start and advances by duration. A candidate that collides with a
// busy interval is skipped and the walk resumes where the last colliding booking ends, so a
// slot directly after a booking is always offered. Only starts after now are yielded, and the
// walk stops once a slot would run past the window end. Each range over the result repeats the
// walk with the same inputs.
func (g Generator) Slots(date time.Time, duration time.Duration, busy []domain.Interval, now time.Time) iter.Seq[time.Time] {
	busy = slices.Clone(busy)
	bounds := g.Bounds(date)

	return func(yield func(time.Time) bool) {
		if duration <= 0 {
			return
		}
		for t := bounds.Start; !t.Add(duration).After(bounds.End); {
			candidate := domain.NewInterval(t, duration)
			if resume, blocked := blockedUntil(busy, candidate); blocked {
				t = resume
				continue
			}
			if t.After(now) {
				if !yield(t) {
					return
				}
			}
			t = t.Add(duration)
		}
	}
}

func blockedUntil(busy []domain.Interval, candidate domain.Interval) (time.Time, bool) {
	var until time.Time
	blocked := false
	for _, b := range busy {
		if !b.Overlaps(candidate) {
			continue
		}
		if !blocked || b.End.After(until) {
			until = b.End
		}
		blocked = true
	}
	return until, blocked
}
