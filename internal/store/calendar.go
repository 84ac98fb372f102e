package store

import (
	"context"

	"garagebook/internal/domain"
)

// ScheduleTx is the view of the store inside InScheduleTransaction.
type ScheduleTx interface {
	TokenStore

	GetCustomer(ctx context.Context, id int64) (domain.Customer, error)
	GetService(ctx context.Context, id int64) (domain.Service, error)
	// FirstTechnician returns the technician of the workshop with the lowest id.
	FirstTechnician(ctx context.Context, workshopID int64) (domain.Technician, error)

	GetAppointment(ctx context.Context, id int64) (domain.Appointment, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]domain.Booking, error)
	InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	DeleteAppointment(ctx context.Context, id int64) error

	AppendOutbox(ctx context.Context, event domain.OutboxEvent) error
}
