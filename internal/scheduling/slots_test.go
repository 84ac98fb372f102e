package scheduling

import (
	"slices"
	"testing"
	"time"

	"garagebook/internal/domain"
)

func clock(date time.Time, hour, min int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, hour, min, 0, 0, date.Location())
}

func formatAll(ts []time.Time) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Format("15:04"))
	}
	return out
}

func TestSlots_FortyFiveMinuteServiceAroundBooking(t *testing.T) {
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	g := Generator{Window: DefaultWindow, Location: time.UTC}
	busy := []domain.Interval{domain.NewInterval(clock(day, 10, 0), 45*time.Minute)}

	got := formatAll(slices.Collect(g.Slots(day, 45*time.Minute, busy, day.Add(-24*time.Hour))))

	for _, want := range []string{"09:00", "10:45"} {
		if !slices.Contains(got, want) {
			t.Fatalf("expected %s in %v", want, got)
		}
	}
	for _, unwanted := range []string{"10:00", "10:15", "10:30"} {
		if slices.Contains(got, unwanted) {
			t.Fatalf("did not expect %s in %v", unwanted, got)
		}
	}
	if last := got[len(got)-1]; last != "16:00" {
		t.Fatalf("last slot = %s, want 16:00 (%v)", last, got)
	}
}

func TestSlots_NoBookingsStepsByDuration(t *testing.T) {
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	g := Generator{Window: DefaultWindow, Location: time.UTC}

	got := formatAll(slices.Collect(g.Slots(day, 2*time.Hour, nil, time.Time{})))
	want := []string{"09:00", "11:00", "13:00", "15:00"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSlots_SkipsPastStarts(t *testing.T) {
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	g := Generator{Window: DefaultWindow, Location: time.UTC}
	now := clock(day, 12, 10)

	got := formatAll(slices.Collect(g.Slots(day, time.Hour, nil, now)))
	want := []string{"13:00", "14:00", "15:00", "16:00"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSlots_StartAtNowIsNotOffered(t *testing.T) {
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	g := Generator{Window: DefaultWindow, Location: time.UTC}

	got := formatAll(slices.Collect(g.Slots(day, time.Hour, nil, clock(day, 13, 0))))
	want := []string{"14:00", "15:00", "16:00"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSlots_Empty(t *testing.T) {
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	g := Generator{Window: DefaultWindow, Location: time.UTC}

	cases := map[string]time.Duration{
		"zero duration":      0,
		"negative duration":  -time.Minute,
		"longer than window": 9 * time.Hour,
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			if got := slices.Collect(g.Slots(day, d, nil, time.Time{})); len(got) != 0 {
				t.Fatalf("expected no slots, got %v", got)
			}
		})
	}

	full := []domain.Interval{{Start: clock(day, 8, 0), End: clock(day, 18, 0)}}
	if got := slices.Collect(g.Slots(day, 30*time.Minute, full, time.Time{})); len(got) != 0 {
		t.Fatalf("expected no slots on a fully booked day, got %v", got)
	}
}

func TestSlots_Restartable(t *testing.T) {
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	g := Generator{Window: DefaultWindow, Location: time.UTC}
	busy := []domain.Interval{domain.NewInterval(clock(day, 11, 0), 30*time.Minute)}
	seq := g.Slots(day, 30*time.Minute, busy, time.Time{})

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) {
		t.Fatalf("second walk differs: %v vs %v", first, second)
	}

	var taken []time.Time
	for ts := range seq {
		taken = append(taken, ts)
		if len(taken) == 2 {
			break
		}
	}
	if !slices.Equal(taken, first[:2]) {
		t.Fatalf("early stop returned %v, want %v", taken, first[:2])
	}
}

func TestSlots_AcceptedSlotsNeverOverlapBusy(t *testing.T) {
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	g := Generator{Window: DefaultWindow, Location: time.UTC}
	busy := []domain.Interval{
		domain.NewInterval(clock(day, 9, 20), 25*time.Minute),
		domain.NewInterval(clock(day, 12, 0), time.Hour),
		domain.NewInterval(clock(day, 12, 30), 90*time.Minute),
	}

	prev := time.Time{}
	for ts := range g.Slots(day, 40*time.Minute, busy, time.Time{}) {
		span := domain.NewInterval(ts, 40*time.Minute)
		for _, b := range busy {
			if b.Overlaps(span) {
				t.Fatalf("slot %s overlaps busy %v", ts.Format("15:04"), b)
			}
		}
		if !ts.After(prev) {
			t.Fatalf("slots not ascending at %s", ts.Format("15:04"))
		}
		prev = ts
	}
}

func TestBounds_UsesDateInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	g := Generator{Window: DefaultWindow, Location: loc}

	b := g.Bounds(time.Date(2026, 6, 1, 23, 30, 0, 0, time.UTC))
	if got := b.Start.Format("2006-01-02 15:04"); got != "2026-06-02 09:00" {
		t.Fatalf("start = %s", got)
	}
	if got := b.End.Format("2006-01-02 15:04"); got != "2026-06-02 17:00" {
		t.Fatalf("end = %s", got)
	}
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("08:30", "18:00")
	if err != nil {
		t.Fatalf("ParseWindow error: %v", err)
	}
	if w.Start != 8*time.Hour+30*time.Minute || w.End != 18*time.Hour {
		t.Fatalf("unexpected window %+v", w)
	}
	if w.Length() != 9*time.Hour+30*time.Minute {
		t.Fatalf("Length = %v", w.Length())
	}

	for _, tc := range [][2]string{{"17:00", "09:00"}, {"09:00", "09:00"}, {"9am", "17:00"}, {"09:00", ""}} {
		if _, err := ParseWindow(tc[0], tc[1]); err == nil {
			t.Fatalf("ParseWindow(%q, %q) expected error", tc[0], tc[1])
		}
	}
}
