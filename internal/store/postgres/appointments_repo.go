package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"garagebook/internal/domain"
	"garagebook/internal/store"
)

type Store struct {
	db *bun.DB
}

var (
	_ store.Store  = (*Store)(nil)
	_ store.Outbox = (*Store)(nil)
)

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

type scheduleTx struct {
	tx bun.Tx
}

func (s *Store) InScheduleTransaction(ctx context.Context, key string, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockSchedule(ctx, tx, key); err != nil {
			return err
		}
		return fn(ctx, scheduleTx{tx: tx})
	})
}

func lockSchedule(ctx context.Context, tx bun.Tx, key string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx)
	return err
}

func (s *Store) GetAppointment(ctx context.Context, id int64) (domain.Appointment, error) {
	return getAppointment(ctx, s.db, id, false)
}

func (s *Store) AppointmentDetails(ctx context.Context, id int64) (domain.AppointmentDetails, error) {
	var d domain.AppointmentDetails
	err := s.db.NewSelect().
		Model(&d).
		ColumnExpr("a.*").
		ColumnExpr("w.name AS workshop_name").
		ColumnExpr("s.name AS service_name").
		ColumnExpr("s.duration AS service_duration").
		ColumnExpr("COALESCE(t.name, '') AS technician_name").
		Join("JOIN workshops AS w ON w.id = a.workshop_id").
		Join("JOIN services AS s ON s.id = a.service_id").
		Join("LEFT JOIN technicians AS t ON t.id = a.technician_id").
		Where("a.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.AppointmentDetails{}, mapNoRows(err)
	}
	return d, nil
}

func (s *Store) ListCustomerAppointments(ctx context.Context, customerID int64) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := s.db.NewSelect().
		Model(&rows).
		Where("a.customer_id = ?", customerID).
		OrderExpr("a.scheduled_time ASC, a.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) ListBookings(ctx context.Context, f store.BookingFilter) ([]domain.Booking, error) {
	return listBookings(ctx, s.db, f)
}

func (r scheduleTx) GetAppointment(ctx context.Context, id int64) (domain.Appointment, error) {
	return getAppointment(ctx, r.tx, id, true)
}

func (r scheduleTx) ListBookings(ctx context.Context, f store.BookingFilter) ([]domain.Booking, error) {
	return listBookings(ctx, r.tx, f)
}

func (r scheduleTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	m.ID = 0
	if _, err := r.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Appointment{}, mapWriteError(err)
	}
	return m, nil
}

func (r scheduleTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	res, err := r.tx.NewUpdate().
		Model(&m).
		Column("scheduled_time", "end_time", "payment_method", "modified_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return m, nil
}

func (r scheduleTx) DeleteAppointment(ctx context.Context, id int64) error {
	res, err := r.tx.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r scheduleTx) GetService(ctx context.Context, id int64) (domain.Service, error) {
	return getService(ctx, r.tx, id)
}

func (r scheduleTx) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	return getCustomer(ctx, r.tx, id)
}

func (r scheduleTx) FirstTechnician(ctx context.Context, workshopID int64) (domain.Technician, error) {
	var t domain.Technician
	err := r.tx.NewSelect().
		Model(&t).
		Where("t.workshop_id = ?", workshopID).
		OrderExpr("t.id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Technician{}, mapNoRows(err)
	}
	return t, nil
}

func (r scheduleTx) AppendOutbox(ctx context.Context, event domain.OutboxEvent) error {
	m := event
	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	return err
}

func getAppointment(ctx context.Context, db bun.IDB, id int64, forUpdate bool) (domain.Appointment, error) {
	var a domain.Appointment
	q := db.NewSelect().
		Model(&a).
		Where("a.id = ?", id).
		Limit(1)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return domain.Appointment{}, mapNoRows(err)
	}
	return a, nil
}

func listBookings(ctx context.Context, db bun.IDB, f store.BookingFilter) ([]domain.Booking, error) {
	var rows []domain.Appointment
	q := db.NewSelect().
		Model(&rows).
		Column("id", "technician_id", "scheduled_time", "end_time")
	if f.WorkshopID != 0 {
		q = q.Where("a.workshop_id = ?", f.WorkshopID)
	}
	if f.ServiceID != 0 {
		q = q.Where("a.service_id = ?", f.ServiceID)
	}
	if f.TechnicianID != 0 {
		q = q.Where("a.technician_id = ?", f.TechnicianID)
	}
	if f.ExcludeID != 0 {
		q = q.Where("a.id <> ?", f.ExcludeID)
	}
	if !f.Window.Start.IsZero() && !f.Window.End.IsZero() {
		q = q.Where("a.scheduled_time < ?", f.Window.End).
			Where("a.end_time > ?", f.Window.Start)
	}
	if err := q.OrderExpr("a.scheduled_time ASC").Scan(ctx); err != nil {
		return nil, err
	}

	out := make([]domain.Booking, 0, len(rows))
	for _, a := range rows {
		out = append(out, domain.Booking{AppointmentID: a.ID, TechnicianID: a.TechnicianID, Span: a.Span()})
	}
	return out, nil
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_overlap":
		return store.ErrConflict
	case pgErr.Code == "23505":
		return store.ErrConflict
	case pgErr.Code == "23514" && pgErr.ConstraintName == "customers_tokens_non_negative":
		return store.ErrInsufficientTokens
	}
	return err
}
