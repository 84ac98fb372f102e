package store

import (
	"context"

	"garagebook/internal/domain"
)

// BookingFilter selects the bookings a candidate appointment competes with. Zero ids match any
// value. A zero Window disables the time filter; otherwise only bookings overlapping it are
// returned.
type BookingFilter struct {
	WorkshopID   int64
	ServiceID    int64
	TechnicianID int64
	Window       domain.Interval
	ExcludeID    int64
}

type Catalog interface {
	ListWorkshops(ctx context.Context) ([]domain.Workshop, error)
	GetWorkshop(ctx context.Context, id int64) (domain.Workshop, error)
	// ListServices returns every service when workshopID is zero.
	ListServices(ctx context.Context, workshopID int64) ([]domain.Service, error)
	GetService(ctx context.Context, id int64) (domain.Service, error)
	ListTechnicians(ctx context.Context, workshopID int64) ([]domain.Technician, error)
}

type Customers interface {
	GetCustomer(ctx context.Context, id int64) (domain.Customer, error)
	CustomerByEmail(ctx context.Context, email string) (domain.Customer, error)
}

// TokenStore mutates loyalty balances. Both mutations return the balance after the change.
// DebitTokens fails with ErrInsufficientTokens and leaves the balance alone when it would go
// negative.
type TokenStore interface {
	CreditTokens(ctx context.Context, customerID int64, amount int) (int, error)
	DebitTokens(ctx context.Context, customerID int64, amount int) (int, error)
	TokenBalance(ctx context.Context, customerID int64) (int, error)
}

type Store interface {
	Catalog
	Customers
	TokenStore

	GetAppointment(ctx context.Context, id int64) (domain.Appointment, error)
	AppointmentDetails(ctx context.Context, id int64) (domain.AppointmentDetails, error)
	ListCustomerAppointments(ctx context.Context, customerID int64) ([]domain.Appointment, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]domain.Booking, error)

	// InScheduleTransaction runs fn in one transaction serialized against every other
	// transaction opened with the same key. fn's error rolls everything back.
	InScheduleTransaction(ctx context.Context, key string, fn func(ctx context.Context, tx ScheduleTx) error) error
}

// Outbox hands unpublished events to publish and marks them published when it returns nil.
type Outbox interface {
	PublishPending(ctx context.Context, limit int, publish func(ctx context.Context, events []domain.OutboxEvent) error) (int, error)
}
