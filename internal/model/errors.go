package model

import "errors"

var (
	ErrNilReserve      = errors.New("reserve is nil")
	ErrNegativeReserve = errors.New("reserve must be non-negative")
	ErrDuplicatePool   = errors.New("duplicate pool id")
	ErrEmptySnapshot   = errors.New("snapshot has fewer than two pools")
)
