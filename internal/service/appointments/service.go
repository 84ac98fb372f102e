package appointments

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"garagebook/internal/apperr"
	"garagebook/internal/domain"
	"garagebook/internal/scheduling"
	"garagebook/internal/service/tokens"
	"garagebook/internal/store"
)

type Guard interface {
	Resolve(ctx context.Context, credential string) (domain.Customer, error)
	Authorize(ctx context.Context, credential string, customerID int64) (domain.Customer, error)
}

type Service struct {
	store  store.Store
	guard  Guard
	policy scheduling.ConflictPolicy
	slots  scheduling.Generator
	now    func() time.Time
}

type Option func(*Service)

func WithPolicy(p scheduling.ConflictPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func WithGenerator(g scheduling.Generator) Option {
	return func(s *Service) { s.slots = g }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.Store, guard Guard, opts ...Option) *Service {
	s := &Service{
		store:  st,
		guard:  guard,
		policy: scheduling.WorkshopServicePolicy{},
		slots:  scheduling.Generator{Window: scheduling.DefaultWindow, Location: time.Local},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location is the zone wire times are interpreted in.
func (s *Service) Location() *time.Location {
	if s.slots.Location == nil {
		return time.Local
	}
	return s.slots.Location
}

type CreateInput struct {
	// CustomerID zero means the customer the credential resolves to.
	CustomerID    int64
	WorkshopID    int64
	ServiceID     int64
	ScheduledTime string
	PaymentMethod string
	Credential    string
}

type CreateResult struct {
	Appointment domain.Appointment
	Customer    domain.Customer
}

func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	now := s.now()
	start, err := s.parseFuture(in.ScheduledTime, now)
	if err != nil {
		return CreateResult{}, err
	}
	if in.WorkshopID <= 0 {
		return CreateResult{}, apperr.Validation("workshop_id must be a positive integer")
	}
	if in.ServiceID <= 0 {
		return CreateResult{}, apperr.Validation("service_id must be a positive integer")
	}

	customer, err := s.guard.Resolve(ctx, in.Credential)
	if err != nil {
		return CreateResult{}, err
	}
	if in.CustomerID != 0 && in.CustomerID != customer.ID {
		return CreateResult{}, apperr.Unauthorized()
	}

	method, err := parsePaymentMethod(in.PaymentMethod, domain.PaymentNotSelected)
	if err != nil {
		return CreateResult{}, err
	}

	candidate := scheduling.Candidate{WorkshopID: in.WorkshopID, ServiceID: in.ServiceID}
	var out CreateResult
	err = s.store.InScheduleTransaction(ctx, s.policy.LockKey(candidate), func(ctx context.Context, tx store.ScheduleTx) error {
		svc, err := serviceFor(ctx, tx, in.ServiceID)
		if err != nil {
			return err
		}

		tech, err := tx.FirstTechnician(ctx, in.WorkshopID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Validation("workshop %d has no technician to assign", in.WorkshopID)
		}
		if err != nil {
			return err
		}

		candidate.TechnicianID = tech.ID
		candidate.Span = domain.NewInterval(start, svc.Length())
		if err := s.ensureFree(ctx, tx, candidate); err != nil {
			return err
		}

		appt, err := tx.InsertAppointment(ctx, domain.Appointment{
			CustomerID:        customer.ID,
			WorkshopID:        in.WorkshopID,
			ServiceID:         in.ServiceID,
			TechnicianID:      tech.ID,
			ScheduledTime:     candidate.Span.Start,
			EndTime:           candidate.Span.End,
			CreatedAt:         now,
			ModifiedAt:        now,
			AppointmentStatus: domain.FlagUnset,
			PaymentMethod:     method,
			PaymentStatus:     domain.FlagUnset,
		})
		if err != nil {
			return err
		}

		balance, err := tokens.NewLedger(tx).Credit(ctx, customer.ID, 1)
		if err != nil {
			return err
		}
		customer.Tokens = balance

		if err := appendEvent(ctx, tx, domain.EventAppointmentCreated, appt, now); err != nil {
			return err
		}
		out = CreateResult{Appointment: appt, Customer: customer}
		return nil
	})
	if err != nil {
		return CreateResult{}, translate(err, "create appointment")
	}
	return out, nil
}

type ModifyInput struct {
	AppointmentID int64
	ScheduledTime string
	// PaymentMethod empty keeps the current method.
	PaymentMethod string
	Credential    string
}

func (s *Service) Modify(ctx context.Context, in ModifyInput) (domain.Appointment, error) {
	now := s.now()
	start, err := s.parseFuture(in.ScheduledTime, now)
	if err != nil {
		return domain.Appointment{}, err
	}
	if in.AppointmentID <= 0 {
		return domain.Appointment{}, apperr.Validation("appointment_id must be a positive integer")
	}

	customer, err := s.guard.Resolve(ctx, in.Credential)
	if err != nil {
		return domain.Appointment{}, err
	}
	existing, err := s.store.GetAppointment(ctx, in.AppointmentID)
	if err != nil {
		return domain.Appointment{}, translateLookup(err, in.AppointmentID)
	}

	candidate := scheduling.Candidate{
		AppointmentID: existing.ID,
		WorkshopID:    existing.WorkshopID,
		ServiceID:     existing.ServiceID,
		TechnicianID:  existing.TechnicianID,
	}
	var out domain.Appointment
	err = s.store.InScheduleTransaction(ctx, s.policy.LockKey(candidate), func(ctx context.Context, tx store.ScheduleTx) error {
		current, err := tx.GetAppointment(ctx, in.AppointmentID)
		if err != nil {
			return translateLookup(err, in.AppointmentID)
		}
		if current.CustomerID != customer.ID {
			return apperr.Unauthorized()
		}

		svc, err := serviceFor(ctx, tx, current.ServiceID)
		if err != nil {
			return err
		}
		candidate.Span = domain.NewInterval(start, svc.Length())
		if err := s.ensureFree(ctx, tx, candidate); err != nil {
			return err
		}

		method, err := parsePaymentMethod(in.PaymentMethod, current.PaymentMethod)
		if err != nil {
			return err
		}

		current.ScheduledTime = candidate.Span.Start
		current.EndTime = candidate.Span.End
		current.PaymentMethod = method
		current.ModifiedAt = now
		updated, err := tx.UpdateAppointment(ctx, current)
		if err != nil {
			return err
		}
		if err := appendEvent(ctx, tx, domain.EventAppointmentModified, updated, now); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Appointment{}, translate(err, "modify appointment")
	}
	return out, nil
}

// Delete removes the appointment. Tokens earned by booking it are kept.
func (s *Service) Delete(ctx context.Context, appointmentID int64, credential string) error {
	if appointmentID <= 0 {
		return apperr.Validation("appointment_id must be a positive integer")
	}
	customer, err := s.guard.Resolve(ctx, credential)
	if err != nil {
		return err
	}
	existing, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return translateLookup(err, appointmentID)
	}

	key := s.policy.LockKey(scheduling.Candidate{
		AppointmentID: existing.ID,
		WorkshopID:    existing.WorkshopID,
		ServiceID:     existing.ServiceID,
	})
	err = s.store.InScheduleTransaction(ctx, key, func(ctx context.Context, tx store.ScheduleTx) error {
		current, err := tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return translateLookup(err, appointmentID)
		}
		if current.CustomerID != customer.ID {
			return apperr.Unauthorized()
		}
		if err := tx.DeleteAppointment(ctx, appointmentID); err != nil {
			return translateLookup(err, appointmentID)
		}
		return appendEvent(ctx, tx, domain.EventAppointmentDeleted, current, s.now())
	})
	return translate(err, "delete appointment")
}

func (s *Service) Get(ctx context.Context, appointmentID int64, credential string) (domain.AppointmentDetails, error) {
	if appointmentID <= 0 {
		return domain.AppointmentDetails{}, apperr.Validation("appointment_id must be a positive integer")
	}
	customer, err := s.guard.Resolve(ctx, credential)
	if err != nil {
		return domain.AppointmentDetails{}, err
	}
	d, err := s.store.AppointmentDetails(ctx, appointmentID)
	if err != nil {
		return domain.AppointmentDetails{}, translateLookup(err, appointmentID)
	}
	if d.CustomerID != customer.ID {
		return domain.AppointmentDetails{}, apperr.Unauthorized()
	}
	return d, nil
}

func (s *Service) ListForCustomer(ctx context.Context, customerID int64, credential string) ([]domain.Appointment, error) {
	if customerID <= 0 {
		return nil, apperr.Validation("customer_id must be a positive integer")
	}
	if _, err := s.guard.Authorize(ctx, credential, customerID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListCustomerAppointments(ctx, customerID)
	if err != nil {
		return nil, apperr.Dependency(err, "list appointments")
	}
	return rows, nil
}

type SlotQuery struct {
	// Date is yyyy-MM-dd or a full yyyy-MM-dd HH:mm timestamp whose date part is used.
	Date       string
	WorkshopID int64
	ServiceID  int64
}

// ListSlots returns the free start times for the service at the workshop on the given date.
// The result is a snapshot; Create and Modify check again before committing.
func (s *Service) ListSlots(ctx context.Context, q SlotQuery) ([]time.Time, error) {
	if q.WorkshopID <= 0 || q.ServiceID <= 0 {
		return nil, apperr.Validation("ids must be positive integers")
	}
	date, err := domain.ParseDate(q.Date, s.Location())
	if err != nil {
		return nil, apperr.Validation("invalid date %q: expected %s", q.Date, domain.WireLayout)
	}
	svc, err := serviceFor(ctx, s.store, q.ServiceID)
	if err != nil {
		return nil, translate(err, "load service")
	}

	candidate := scheduling.Candidate{WorkshopID: q.WorkshopID, ServiceID: q.ServiceID}
	busy, err := scheduling.Busy(ctx, s.store, s.policy, candidate, s.slots.Bounds(date))
	if err != nil {
		return nil, apperr.Dependency(err, "list bookings")
	}
	return slices.Collect(s.slots.Slots(date, svc.Length(), busy, s.now())), nil
}

func (s *Service) parseFuture(raw string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, apperr.Validation("scheduledTime is required")
	}
	t, err := domain.ParseWireTime(raw, s.Location())
	if err != nil {
		return time.Time{}, apperr.Validation("invalid scheduledTime %q: expected %s", raw, domain.WireLayout)
	}
	if !t.After(now) {
		return time.Time{}, apperr.Conflict("appointment time must be in the future")
	}
	return t, nil
}

func (s *Service) ensureFree(ctx context.Context, tx store.ScheduleTx, c scheduling.Candidate) error {
	b, found, err := scheduling.FindConflict(ctx, tx, s.policy, c)
	if err != nil {
		return err
	}
	if found {
		return apperr.Conflict("requested time overlaps appointment %d (%s - %s)",
			b.AppointmentID, domain.FormatWireTime(b.Span.Start), domain.FormatWireTime(b.Span.End))
	}
	return nil
}

type serviceGetter interface {
	GetService(ctx context.Context, id int64) (domain.Service, error)
}

func serviceFor(ctx context.Context, st serviceGetter, id int64) (domain.Service, error) {
	svc, err := st.GetService(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Service{}, apperr.Validation("unknown service %d", id)
	}
	if err != nil {
		return domain.Service{}, err
	}
	if svc.Duration <= 0 {
		return domain.Service{}, apperr.Validation("service %d has no duration", id)
	}
	return svc, nil
}

func parsePaymentMethod(raw string, fallback domain.PaymentMethod) (domain.PaymentMethod, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	m, ok := domain.ParsePaymentMethod(raw)
	if !ok {
		return "", apperr.Validation("invalid payment method %q", raw)
	}
	return m, nil
}

func appendEvent(ctx context.Context, tx store.ScheduleTx, eventType string, appt domain.Appointment, at time.Time) error {
	ev, err := domain.NewAppointmentEvent(eventType, appt, at)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	return tx.AppendOutbox(ctx, ev)
}

func translateLookup(err error, appointmentID int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("appointment %d not found", appointmentID)
	}
	return translate(err, fmt.Sprintf("access appointment %d", appointmentID))
}

// translate keeps classified errors and classifies store sentinels. Anything else is a
// dependency failure.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, store.ErrConflict) {
		return apperr.Conflict("requested time overlaps an existing appointment")
	}
	return apperr.Dependency(err, op)
}
