package scheduling

import (
	"context"
	"fmt"

	"garagebook/internal/domain"
	"garagebook/internal/store"
)

// Candidate is an appointment about to be written. AppointmentID is zero for new bookings.
type Candidate struct {
	AppointmentID int64
	WorkshopID    int64
	ServiceID     int64
	TechnicianID  int64
	Span          domain.Interval
}

// ConflictPolicy decides which bookings compete for the same time and which lock serializes
// writers that could collide.
type ConflictPolicy interface {
	LockKey(c Candidate) string
	Filter(c Candidate, window domain.Interval) store.BookingFilter
}

// WorkshopServicePolicy treats every booking of the same service at the same workshop as a
// competitor, regardless of technician.
type WorkshopServicePolicy struct{}

func (WorkshopServicePolicy) LockKey(c Candidate) string {
	return fmt.Sprintf("schedule:%d:%d", c.WorkshopID, c.ServiceID)
}

func (WorkshopServicePolicy) Filter(c Candidate, window domain.Interval) store.BookingFilter {
	return store.BookingFilter{
		WorkshopID: c.WorkshopID,
		ServiceID:  c.ServiceID,
		Window:     window,
		ExcludeID:  c.AppointmentID,
	}
}

type BookingLister interface {
	ListBookings(ctx context.Context, f store.BookingFilter) ([]domain.Booking, error)
}

// FindConflict returns the first competing booking overlapping the candidate.
func FindConflict(ctx context.Context, bookings BookingLister, policy ConflictPolicy, c Candidate) (domain.Booking, bool, error) {
	rows, err := bookings.ListBookings(ctx, policy.Filter(c, c.Span))
	if err != nil {
		return domain.Booking{}, false, err
	}
	for _, b := range rows {
		if c.AppointmentID != 0 && b.AppointmentID == c.AppointmentID {
			continue
		}
		if b.Span.Overlaps(c.Span) {
			return b, true, nil
		}
	}
	return domain.Booking{}, false, nil
}

// Busy lists the spans of the bookings competing with c inside window.
func Busy(ctx context.Context, bookings BookingLister, policy ConflictPolicy, c Candidate, window domain.Interval) ([]domain.Interval, error) {
	rows, err := bookings.ListBookings(ctx, policy.Filter(c, window))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Interval, 0, len(rows))
	for _, b := range rows {
		out = append(out, b.Span)
	}
	return out, nil
}
