package queue

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnknownStatus     = errors.New("unknown status")
	ErrInvalidTransition = errors.New("status transition not allowed")
)
