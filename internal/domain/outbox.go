package domain

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

const (
	EventAppointmentCreated  = "appointment.created"
	EventAppointmentModified = "appointment.modified"
	EventAppointmentDeleted  = "appointment.deleted"
)

type OutboxEvent struct {
	bun.BaseModel `bun:"table:outbox_events,alias:o" json:"-"`

	ID          int64           `bun:"id,pk,autoincrement"`
	AggregateID int64           `bun:"aggregate_id,notnull"`
	EventType   string          `bun:"event_type,notnull"`
	Payload     json.RawMessage `bun:"payload,type:jsonb,notnull"`
	CreatedAt   time.Time       `bun:"created_at,notnull,default:current_timestamp"`
	PublishedAt *time.Time      `bun:"published_at"`
}

// NewAppointmentEvent builds an outbox record carrying the appointment as its payload.
func NewAppointmentEvent(eventType string, a Appointment, at time.Time) (OutboxEvent, error) {
	payload, err := json.Marshal(struct {
		Appointment
		OccurredAt time.Time `json:"occurred_at"`
	}{Appointment: a, OccurredAt: at})
	if err != nil {
		return OutboxEvent{}, err
	}
	return OutboxEvent{
		AggregateID: a.ID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   at,
	}, nil
}
