package store

import "errors"

var (
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
	ErrInsufficientTokens = errors.New("insufficient tokens")
)
