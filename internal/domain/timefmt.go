package domain

import (
	"strings"
	"time"
)

const (
	// WireLayout is the yyyy-MM-dd HH:mm format used on every external surface.
	WireLayout = "2006-01-02 15:04"
	DateLayout = "2006-01-02"
)

func ParseWireTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(WireLayout, strings.TrimSpace(s), loc)
}

func FormatWireTime(t time.Time) string {
	return t.Format(WireLayout)
}

// ParseDate accepts either yyyy-MM-dd or a full wire timestamp and returns local midnight.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		if _, err := time.ParseInLocation(WireLayout, s, loc); err != nil {
			return time.Time{}, err
		}
		s = s[:len(DateLayout)]
	}
	return time.ParseInLocation(DateLayout, s, loc)
}
