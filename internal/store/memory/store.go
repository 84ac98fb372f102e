// Package memory is an in-process store used by tests and local runs without a database.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"garagebook/internal/domain"
	"garagebook/internal/store"
)

type state struct {
	workshops    map[int64]domain.Workshop
	services     map[int64]domain.Service
	offered      map[int64][]int64
	technicians  map[int64]domain.Technician
	customers    map[int64]domain.Customer
	appointments map[int64]domain.Appointment
	outbox       []domain.OutboxEvent
	nextID       int64
}

func (s *state) clone() *state {
	offered := make(map[int64][]int64, len(s.offered))
	for k, v := range s.offered {
		offered[k] = slices.Clone(v)
	}
	return &state{
		workshops:    maps.Clone(s.workshops),
		services:     maps.Clone(s.services),
		offered:      offered,
		technicians:  maps.Clone(s.technicians),
		customers:    maps.Clone(s.customers),
		appointments: maps.Clone(s.appointments),
		outbox:       slices.Clone(s.outbox),
		nextID:       s.nextID,
	}
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store keeps everything in maps. Writers are serialized by one mutex and commit by swapping in
// a modified copy of the state, so a failed transaction leaves nothing behind.
type Store struct {
	writeMu   sync.Mutex
	publishMu sync.Mutex

	mu    sync.RWMutex
	state *state

	now func() time.Time
}

var (
	_ store.Store  = (*Store)(nil)
	_ store.Outbox = (*Store)(nil)
)

func New() *Store {
	return &Store{
		state: &state{
			workshops:    map[int64]domain.Workshop{},
			services:     map[int64]domain.Service{},
			offered:      map[int64][]int64{},
			technicians:  map[int64]domain.Technician{},
			customers:    map[int64]domain.Customer{},
			appointments: map[int64]domain.Appointment{},
		},
		now: time.Now,
	}
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// update applies fn to a copy of the state and commits the copy when fn succeeds.
func (s *Store) update(fn func(st *state) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.snapshot().clone()
	if err := fn(next); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	return nil
}

func (s *Store) AddWorkshop(w domain.Workshop) domain.Workshop {
	_ = s.update(func(st *state) error {
		w.ID = st.id()
		st.workshops[w.ID] = w
		return nil
	})
	return w
}

// AddService registers svc and marks it as offered by the given workshops.
func (s *Store) AddService(svc domain.Service, workshopIDs ...int64) domain.Service {
	_ = s.update(func(st *state) error {
		svc.ID = st.id()
		st.services[svc.ID] = svc
		for _, wid := range workshopIDs {
			st.offered[wid] = append(st.offered[wid], svc.ID)
		}
		return nil
	})
	return svc
}

func (s *Store) AddTechnician(t domain.Technician) domain.Technician {
	_ = s.update(func(st *state) error {
		t.ID = st.id()
		st.technicians[t.ID] = t
		return nil
	})
	return t
}

func (s *Store) AddCustomer(c domain.Customer) (domain.Customer, error) {
	err := s.update(func(st *state) error {
		for _, existing := range st.customers {
			if strings.EqualFold(existing.Email, c.Email) {
				return fmt.Errorf("customer %s: %w", c.Email, store.ErrConflict)
			}
		}
		c.ID = st.id()
		st.customers[c.ID] = c
		return nil
	})
	return c, err
}

// Appointments returns every stored appointment ordered by id.
func (s *Store) Appointments() []domain.Appointment {
	st := s.snapshot()
	out := slices.Collect(maps.Values(st.appointments))
	slices.SortFunc(out, func(a, b domain.Appointment) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Events returns the outbox, published or not.
func (s *Store) Events() []domain.OutboxEvent {
	return slices.Clone(s.snapshot().outbox)
}

func (s *Store) ListWorkshops(ctx context.Context) ([]domain.Workshop, error) {
	out := slices.Collect(maps.Values(s.snapshot().workshops))
	slices.SortFunc(out, func(a, b domain.Workshop) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) GetWorkshop(ctx context.Context, id int64) (domain.Workshop, error) {
	w, ok := s.snapshot().workshops[id]
	if !ok {
		return domain.Workshop{}, store.ErrNotFound
	}
	return w, nil
}

func (s *Store) ListServices(ctx context.Context, workshopID int64) ([]domain.Service, error) {
	st := s.snapshot()
	var out []domain.Service
	if workshopID == 0 {
		out = slices.Collect(maps.Values(st.services))
	} else {
		for _, id := range st.offered[workshopID] {
			out = append(out, st.services[id])
		}
	}
	slices.SortFunc(out, func(a, b domain.Service) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) GetService(ctx context.Context, id int64) (domain.Service, error) {
	return getService(s.snapshot(), id)
}

func (s *Store) ListTechnicians(ctx context.Context, workshopID int64) ([]domain.Technician, error) {
	return techniciansOf(s.snapshot(), workshopID), nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	return getCustomer(s.snapshot(), id)
}

func (s *Store) CustomerByEmail(ctx context.Context, email string) (domain.Customer, error) {
	for _, c := range s.snapshot().customers {
		if strings.EqualFold(c.Email, email) {
			return c, nil
		}
	}
	return domain.Customer{}, store.ErrNotFound
}

func (s *Store) CreditTokens(ctx context.Context, customerID int64, amount int) (int, error) {
	var balance int
	err := s.update(func(st *state) error {
		var err error
		balance, err = adjustTokens(st, customerID, amount)
		return err
	})
	return balance, err
}

func (s *Store) DebitTokens(ctx context.Context, customerID int64, amount int) (int, error) {
	var balance int
	err := s.update(func(st *state) error {
		var err error
		balance, err = adjustTokens(st, customerID, -amount)
		return err
	})
	return balance, err
}

func (s *Store) TokenBalance(ctx context.Context, customerID int64) (int, error) {
	c, err := getCustomer(s.snapshot(), customerID)
	if err != nil {
		return 0, err
	}
	return c.Tokens, nil
}

func (s *Store) GetAppointment(ctx context.Context, id int64) (domain.Appointment, error) {
	return getAppointment(s.snapshot(), id)
}

func (s *Store) AppointmentDetails(ctx context.Context, id int64) (domain.AppointmentDetails, error) {
	st := s.snapshot()
	a, err := getAppointment(st, id)
	if err != nil {
		return domain.AppointmentDetails{}, err
	}
	svc := st.services[a.ServiceID]
	return domain.AppointmentDetails{
		Appointment:     a,
		WorkshopName:    st.workshops[a.WorkshopID].Name,
		ServiceName:     svc.Name,
		ServiceDuration: svc.Duration,
		TechnicianName:  st.technicians[a.TechnicianID].Name,
	}, nil
}

func (s *Store) ListCustomerAppointments(ctx context.Context, customerID int64) ([]domain.Appointment, error) {
	var out []domain.Appointment
	for _, a := range s.snapshot().appointments {
		if a.CustomerID == customerID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b domain.Appointment) int {
		return cmp.Or(a.ScheduledTime.Compare(b.ScheduledTime), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) ListBookings(ctx context.Context, f store.BookingFilter) ([]domain.Booking, error) {
	return listBookings(s.snapshot(), f), nil
}

func (s *Store) InScheduleTransaction(ctx context.Context, key string, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	return s.update(func(st *state) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx, &scheduleTx{st: st})
	})
}

// PublishPending hands a snapshot of pending events to publish without holding the write lock,
// then marks them published. publishMu keeps concurrent publishers from sending one event twice.
func (s *Store) PublishPending(ctx context.Context, limit int, publish func(ctx context.Context, events []domain.OutboxEvent) error) (int, error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	var events []domain.OutboxEvent
	for _, e := range s.snapshot().outbox {
		if limit > 0 && len(events) == limit {
			break
		}
		if e.PublishedAt == nil {
			events = append(events, e)
		}
	}
	if len(events) == 0 {
		return 0, nil
	}
	if err := publish(ctx, events); err != nil {
		return 0, err
	}

	sent := make(map[int64]struct{}, len(events))
	for _, e := range events {
		sent[e.ID] = struct{}{}
	}
	at := s.now()
	err := s.update(func(st *state) error {
		for i := range st.outbox {
			if _, ok := sent[st.outbox[i].ID]; ok {
				st.outbox[i].PublishedAt = &at
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

type scheduleTx struct {
	st *state
}

func (tx *scheduleTx) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	return getCustomer(tx.st, id)
}

func (tx *scheduleTx) GetService(ctx context.Context, id int64) (domain.Service, error) {
	return getService(tx.st, id)
}

func (tx *scheduleTx) FirstTechnician(ctx context.Context, workshopID int64) (domain.Technician, error) {
	techs := techniciansOf(tx.st, workshopID)
	if len(techs) == 0 {
		return domain.Technician{}, store.ErrNotFound
	}
	return techs[0], nil
}

func (tx *scheduleTx) GetAppointment(ctx context.Context, id int64) (domain.Appointment, error) {
	return getAppointment(tx.st, id)
}

func (tx *scheduleTx) ListBookings(ctx context.Context, f store.BookingFilter) ([]domain.Booking, error) {
	return listBookings(tx.st, f), nil
}

func (tx *scheduleTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if err := checkOverlap(tx.st, appt); err != nil {
		return domain.Appointment{}, err
	}
	appt.ID = tx.st.id()
	tx.st.appointments[appt.ID] = appt
	return appt, nil
}

func (tx *scheduleTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if _, ok := tx.st.appointments[appt.ID]; !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err := checkOverlap(tx.st, appt); err != nil {
		return domain.Appointment{}, err
	}
	tx.st.appointments[appt.ID] = appt
	return appt, nil
}

func (tx *scheduleTx) DeleteAppointment(ctx context.Context, id int64) error {
	if _, ok := tx.st.appointments[id]; !ok {
		return store.ErrNotFound
	}
	delete(tx.st.appointments, id)
	return nil
}

func (tx *scheduleTx) CreditTokens(ctx context.Context, customerID int64, amount int) (int, error) {
	return adjustTokens(tx.st, customerID, amount)
}

func (tx *scheduleTx) DebitTokens(ctx context.Context, customerID int64, amount int) (int, error) {
	return adjustTokens(tx.st, customerID, -amount)
}

func (tx *scheduleTx) TokenBalance(ctx context.Context, customerID int64) (int, error) {
	c, err := getCustomer(tx.st, customerID)
	if err != nil {
		return 0, err
	}
	return c.Tokens, nil
}

func (tx *scheduleTx) AppendOutbox(ctx context.Context, event domain.OutboxEvent) error {
	event.ID = tx.st.id()
	tx.st.outbox = append(tx.st.outbox, event)
	return nil
}

func getService(st *state, id int64) (domain.Service, error) {
	svc, ok := st.services[id]
	if !ok {
		return domain.Service{}, store.ErrNotFound
	}
	return svc, nil
}

func getCustomer(st *state, id int64) (domain.Customer, error) {
	c, ok := st.customers[id]
	if !ok {
		return domain.Customer{}, store.ErrNotFound
	}
	return c, nil
}

func getAppointment(st *state, id int64) (domain.Appointment, error) {
	a, ok := st.appointments[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func techniciansOf(st *state, workshopID int64) []domain.Technician {
	var out []domain.Technician
	for _, t := range st.technicians {
		if t.WorkshopID == workshopID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b domain.Technician) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func listBookings(st *state, f store.BookingFilter) []domain.Booking {
	var out []domain.Booking
	for _, a := range st.appointments {
		if f.WorkshopID != 0 && a.WorkshopID != f.WorkshopID {
			continue
		}
		if f.ServiceID != 0 && a.ServiceID != f.ServiceID {
			continue
		}
		if f.TechnicianID != 0 && a.TechnicianID != f.TechnicianID {
			continue
		}
		if f.ExcludeID != 0 && a.ID == f.ExcludeID {
			continue
		}
		if !f.Window.Start.IsZero() && !f.Window.End.IsZero() && !a.Span().Overlaps(f.Window) {
			continue
		}
		out = append(out, domain.Booking{AppointmentID: a.ID, TechnicianID: a.TechnicianID, Span: a.Span()})
	}
	slices.SortFunc(out, func(a, b domain.Booking) int { return a.Span.Start.Compare(b.Span.Start) })
	return out
}

// checkOverlap mirrors the exclusion constraint of the postgres schema.
func checkOverlap(st *state, appt domain.Appointment) error {
	for _, other := range st.appointments {
		if other.ID == appt.ID || other.WorkshopID != appt.WorkshopID || other.ServiceID != appt.ServiceID {
			continue
		}
		if other.Span().Overlaps(appt.Span()) {
			return store.ErrConflict
		}
	}
	return nil
}

func adjustTokens(st *state, customerID int64, delta int) (int, error) {
	c, ok := st.customers[customerID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if c.Tokens+delta < 0 {
		return c.Tokens, store.ErrInsufficientTokens
	}
	c.Tokens += delta
	st.customers[customerID] = c
	return c.Tokens, nil
}
