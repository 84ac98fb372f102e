package domain

import (
	"testing"
	"time"
)

func TestParseWireTime(t *testing.T) {
	got, err := ParseWireTime(" 2026-05-04 10:45 ", time.UTC)
	if err != nil {
		t.Fatalf("ParseWireTime error: %v", err)
	}
	want := time.Date(2026, 5, 4, 10, 45, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if FormatWireTime(got) != "2026-05-04 10:45" {
		t.Fatalf("FormatWireTime = %q", FormatWireTime(got))
	}

	for _, bad := range []string{"", "2026-05-04", "2026-05-04T10:45", "04.05.2026 10:45", "2026-05-04 25:00"} {
		if _, err := ParseWireTime(bad, time.UTC); err == nil {
			t.Fatalf("ParseWireTime(%q) expected error", bad)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2026-05-04", "2026-05-04 13:30"} {
		got, err := ParseDate(in, time.UTC)
		if err != nil {
			t.Fatalf("ParseDate(%q) error: %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"", "2026-13-01", "2026-05-04 xx:yy", "tomorrow"} {
		if _, err := ParseDate(bad, time.UTC); err == nil {
			t.Fatalf("ParseDate(%q) expected error", bad)
		}
	}
}

func TestParsePaymentMethod(t *testing.T) {
	for _, m := range PaymentMethods() {
		got, ok := ParsePaymentMethod(" " + string(m) + " ")
		if !ok || got != m {
			t.Fatalf("ParsePaymentMethod(%q) = %q, %v", m, got, ok)
		}
	}
	for _, bad := range []string{"", "cash", "Bitcoin", "Credit/Debit Card"} {
		if _, ok := ParsePaymentMethod(bad); ok {
			t.Fatalf("ParsePaymentMethod(%q) expected rejection", bad)
		}
	}
}
