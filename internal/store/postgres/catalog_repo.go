package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"garagebook/internal/domain"
)

func (s *Store) ListWorkshops(ctx context.Context) ([]domain.Workshop, error) {
	var rows []domain.Workshop
	if err := s.db.NewSelect().Model(&rows).OrderExpr("w.id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) GetWorkshop(ctx context.Context, id int64) (domain.Workshop, error) {
	var w domain.Workshop
	if err := s.db.NewSelect().Model(&w).Where("w.id = ?", id).Limit(1).Scan(ctx); err != nil {
		return domain.Workshop{}, mapNoRows(err)
	}
	return w, nil
}

func (s *Store) ListServices(ctx context.Context, workshopID int64) ([]domain.Service, error) {
	var rows []domain.Service
	q := s.db.NewSelect().Model(&rows)
	if workshopID != 0 {
		q = q.Join("JOIN workshop_services AS ws ON ws.service_id = s.id").
			Where("ws.workshop_id = ?", workshopID)
	}
	if err := q.OrderExpr("s.id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) GetService(ctx context.Context, id int64) (domain.Service, error) {
	return getService(ctx, s.db, id)
}

func (s *Store) ListTechnicians(ctx context.Context, workshopID int64) ([]domain.Technician, error) {
	var rows []domain.Technician
	err := s.db.NewSelect().
		Model(&rows).
		Where("t.workshop_id = ?", workshopID).
		OrderExpr("t.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	return getCustomer(ctx, s.db, id)
}

func (s *Store) CustomerByEmail(ctx context.Context, email string) (domain.Customer, error) {
	var c domain.Customer
	err := s.db.NewSelect().
		Model(&c).
		Where("lower(c.email) = lower(?)", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Customer{}, mapNoRows(err)
	}
	return c, nil
}

func getService(ctx context.Context, db bun.IDB, id int64) (domain.Service, error) {
	var svc domain.Service
	if err := db.NewSelect().Model(&svc).Where("s.id = ?", id).Limit(1).Scan(ctx); err != nil {
		return domain.Service{}, mapNoRows(err)
	}
	return svc, nil
}

func getCustomer(ctx context.Context, db bun.IDB, id int64) (domain.Customer, error) {
	var c domain.Customer
	if err := db.NewSelect().Model(&c).Where("c.id = ?", id).Limit(1).Scan(ctx); err != nil {
		return domain.Customer{}, mapNoRows(err)
	}
	return c, nil
}
