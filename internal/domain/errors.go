package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrEmptyInput      = errors.New("input is empty")
	ErrEmptyTurn       = errors.New("turn content is empty")
	ErrMissingFields   = errors.New("name, emoji and instructions are required")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrClosed          = errors.New("conversation closed")
)
