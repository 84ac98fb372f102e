// Package catalog serves the read-only workshop, service and technician listings.
package catalog

import (
	"context"
	"errors"

	"garagebook/internal/apperr"
	"garagebook/internal/domain"
	"garagebook/internal/store"
)

type Service struct {
	catalog store.Catalog
}

func NewService(catalog store.Catalog) *Service {
	return &Service{catalog: catalog}
}

// Workshops lists every workshop, or only the one with workshopID when it is non-zero.
func (s *Service) Workshops(ctx context.Context, workshopID int64) ([]domain.Workshop, error) {
	if workshopID < 0 {
		return nil, apperr.Validation("workshop_id must be a positive integer")
	}
	if workshopID > 0 {
		w, err := s.catalog.GetWorkshop(ctx, workshopID)
		if err != nil {
			return nil, lookupError(err, "workshop", workshopID)
		}
		return []domain.Workshop{w}, nil
	}
	rows, err := s.catalog.ListWorkshops(ctx)
	if err != nil {
		return nil, apperr.Dependency(err, "list workshops")
	}
	return nonNil(rows), nil
}

// Services lists services. serviceID selects a single service; otherwise workshopID narrows the
// list to what that workshop offers.
func (s *Service) Services(ctx context.Context, workshopID, serviceID int64) ([]domain.Service, error) {
	if workshopID < 0 || serviceID < 0 {
		return nil, apperr.Validation("ids must be positive integers")
	}
	if serviceID > 0 {
		svc, err := s.catalog.GetService(ctx, serviceID)
		if err != nil {
			return nil, lookupError(err, "service", serviceID)
		}
		return []domain.Service{svc}, nil
	}
	if workshopID > 0 {
		if _, err := s.catalog.GetWorkshop(ctx, workshopID); err != nil {
			return nil, lookupError(err, "workshop", workshopID)
		}
	}
	rows, err := s.catalog.ListServices(ctx, workshopID)
	if err != nil {
		return nil, apperr.Dependency(err, "list services")
	}
	return nonNil(rows), nil
}

func (s *Service) Technicians(ctx context.Context, workshopID int64) ([]domain.Technician, error) {
	if workshopID <= 0 {
		return nil, apperr.Validation("workshop_id must be a positive integer")
	}
	if _, err := s.catalog.GetWorkshop(ctx, workshopID); err != nil {
		return nil, lookupError(err, "workshop", workshopID)
	}
	rows, err := s.catalog.ListTechnicians(ctx, workshopID)
	if err != nil {
		return nil, apperr.Dependency(err, "list technicians")
	}
	return nonNil(rows), nil
}

func lookupError(err error, what string, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("%s %d not found", what, id)
	}
	return apperr.Dependency(err, "load "+what)
}

// nonNil keeps empty listings encoding as [] rather than null.
func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
