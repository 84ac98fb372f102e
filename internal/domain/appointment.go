package domain

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

const (
	FlagUnset = "false"
	FlagSet   = "true"
)

type Appointment struct {
	bun.BaseModel `bun:"table:appointments,alias:a" json:"-"`

	ID                int64         `bun:"id,pk,autoincrement" json:"id"`
	CustomerID        int64         `bun:"customer_id,notnull" json:"customer_id"`
	WorkshopID        int64         `bun:"workshop_id,notnull" json:"workshop_id"`
	ServiceID         int64         `bun:"service_id,notnull" json:"service_id"`
	TechnicianID      int64         `bun:"technician_id,notnull" json:"technician_id"`
	ScheduledTime     time.Time     `bun:"scheduled_time,notnull" json:"scheduled_time"`
	EndTime           time.Time     `bun:"end_time,notnull" json:"end_time"`
	CreatedAt         time.Time     `bun:"created_at,notnull" json:"created_at"`
	ModifiedAt        time.Time     `bun:"modified_at,notnull" json:"modified_at"`
	AppointmentStatus string        `bun:"appointment_status,notnull" json:"appointment_status"`
	PaymentMethod     PaymentMethod `bun:"payment_method,notnull" json:"payment_method"`
	PaymentStatus     string        `bun:"payment_status,notnull" json:"payment_status"`
}

// Span is the conflict window occupied by the appointment.
func (a Appointment) Span() Interval {
	return Interval{Start: a.ScheduledTime, End: a.EndTime}
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.ModifiedAt.IsZero() {
			a.ModifiedAt = a.CreatedAt
		}
		if a.AppointmentStatus == "" {
			a.AppointmentStatus = FlagUnset
		}
		if a.PaymentStatus == "" {
			a.PaymentStatus = FlagUnset
		}
	case *bun.UpdateQuery:
		if a.ModifiedAt.IsZero() {
			a.ModifiedAt = now
		}
	}
	return nil
}

// AppointmentDetails is an appointment with the names of everything it references resolved.
type AppointmentDetails struct {
	Appointment `bun:",extend"`

	WorkshopName    string `bun:"workshop_name" json:"workshop_name"`
	ServiceName     string `bun:"service_name" json:"service_name"`
	ServiceDuration int    `bun:"service_duration" json:"service_duration"`
	TechnicianName  string `bun:"technician_name" json:"technician_name"`
}

// Booking is the slice of an appointment the conflict check needs.
type Booking struct {
	AppointmentID int64
	TechnicianID  int64
	Span          Interval
}
