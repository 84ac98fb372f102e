package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"garagebook/internal/domain"
	"garagebook/internal/store"
)

func (s *Store) CreditTokens(ctx context.Context, customerID int64, amount int) (int, error) {
	return creditTokens(ctx, s.db, customerID, amount)
}

func (s *Store) DebitTokens(ctx context.Context, customerID int64, amount int) (int, error) {
	return debitTokens(ctx, s.db, customerID, amount)
}

func (s *Store) TokenBalance(ctx context.Context, customerID int64) (int, error) {
	return tokenBalance(ctx, s.db, customerID)
}

func (r scheduleTx) CreditTokens(ctx context.Context, customerID int64, amount int) (int, error) {
	return creditTokens(ctx, r.tx, customerID, amount)
}

func (r scheduleTx) DebitTokens(ctx context.Context, customerID int64, amount int) (int, error) {
	return debitTokens(ctx, r.tx, customerID, amount)
}

func (r scheduleTx) TokenBalance(ctx context.Context, customerID int64) (int, error) {
	return tokenBalance(ctx, r.tx, customerID)
}

func creditTokens(ctx context.Context, db bun.IDB, customerID int64, amount int) (int, error) {
	var balance int
	err := db.NewUpdate().
		Model((*domain.Customer)(nil)).
		Set("tokens = tokens + ?", amount).
		Where("c.id = ?", customerID).
		Returning("tokens").
		Scan(ctx, &balance)
	if err != nil {
		return 0, mapWriteError(mapNoRows(err))
	}
	return balance, nil
}

// debitTokens subtracts in one conditional statement so concurrent redemptions cannot overdraw.
func debitTokens(ctx context.Context, db bun.IDB, customerID int64, amount int) (int, error) {
	var balance int
	err := db.NewUpdate().
		Model((*domain.Customer)(nil)).
		Set("tokens = tokens - ?", amount).
		Where("c.id = ?", customerID).
		Where("c.tokens >= ?", amount).
		Returning("tokens").
		Scan(ctx, &balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, mapWriteError(err)
	}

	current, err := tokenBalance(ctx, db, customerID)
	if err != nil {
		return 0, err
	}
	return current, store.ErrInsufficientTokens
}

func tokenBalance(ctx context.Context, db bun.IDB, customerID int64) (int, error) {
	var balance int
	err := db.NewSelect().
		Model((*domain.Customer)(nil)).
		Column("tokens").
		Where("c.id = ?", customerID).
		Scan(ctx, &balance)
	if err != nil {
		return 0, mapNoRows(err)
	}
	return balance, nil
}
