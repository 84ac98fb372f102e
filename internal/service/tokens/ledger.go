// Package tokens keeps the loyalty balance of customers.
package tokens

import (
	"context"
	"errors"
	"fmt"

	"garagebook/internal/apperr"
	"garagebook/internal/domain"
	"garagebook/internal/store"
)

// Ledger applies balance changes through a TokenStore, which is either the store itself or an
// open schedule transaction.
type Ledger struct {
	tokens store.TokenStore
}

func NewLedger(tokens store.TokenStore) Ledger {
	return Ledger{tokens: tokens}
}

func (l Ledger) Credit(ctx context.Context, customerID int64, amount int) (int, error) {
	if amount < 0 {
		return 0, apperr.Validation("credit amount must not be negative")
	}
	balance, err := l.tokens.CreditTokens(ctx, customerID, amount)
	if err != nil {
		return 0, translate(err, customerID)
	}
	return balance, nil
}

// Debit removes amount from the balance. ok is false, and nothing changes, when the balance is
// smaller than amount.
func (l Ledger) Debit(ctx context.Context, customerID int64, amount int) (balance int, ok bool, err error) {
	if amount < 0 {
		return 0, false, apperr.Validation("debit amount must not be negative")
	}
	balance, err = l.tokens.DebitTokens(ctx, customerID, amount)
	if errors.Is(err, store.ErrInsufficientTokens) {
		return balance, false, nil
	}
	if err != nil {
		return 0, false, translate(err, customerID)
	}
	return balance, true, nil
}

func (l Ledger) Balance(ctx context.Context, customerID int64) (int, error) {
	balance, err := l.tokens.TokenBalance(ctx, customerID)
	if err != nil {
		return 0, translate(err, customerID)
	}
	return balance, nil
}

func translate(err error, customerID int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("customer %d not found", customerID)
	}
	return apperr.Dependency(err, fmt.Sprintf("update tokens of customer %d", customerID))
}

type Authorizer interface {
	Authorize(ctx context.Context, credential string, customerID int64) (domain.Customer, error)
}

// Service exposes the ledger to customers acting on their own balance.
type Service struct {
	ledger Ledger
	guard  Authorizer
}

func NewService(tokens store.TokenStore, guard Authorizer) *Service {
	return &Service{ledger: NewLedger(tokens), guard: guard}
}

func (s *Service) Balance(ctx context.Context, customerID int64, credential string) (int, error) {
	if _, err := s.guard.Authorize(ctx, credential, customerID); err != nil {
		return 0, err
	}
	return s.ledger.Balance(ctx, customerID)
}

// Redeem debits amount tokens and returns the remaining balance.
func (s *Service) Redeem(ctx context.Context, customerID int64, amount int, credential string) (int, error) {
	if _, err := s.guard.Authorize(ctx, credential, customerID); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, apperr.Validation("tokens to redeem must be greater than 0")
	}
	balance, ok, err := s.ledger.Debit(ctx, customerID, amount)
	if err != nil {
		return 0, err
	}
	if !ok {
		return balance, apperr.Validation("insufficient tokens: balance %d, requested %d", balance, amount)
	}
	return balance, nil
}
