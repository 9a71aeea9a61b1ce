package amm

import "errors"

var (
	// ErrInvalidAmount is returned when an amount is negative.
	ErrInvalidAmount = errors.New("amount must be non-negative")
	// ErrNilAmount is returned when a nil pointer is passed for an amount.
	ErrNilAmount = errors.New("nil pointer passed as amount")
	// ErrInvalidFee is returned for fee rates outside [0, 1).
	ErrInvalidFee = errors.New("invalid fee")
)
