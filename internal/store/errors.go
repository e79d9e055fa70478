package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrUpstream       = errors.New("record store request failed")
	ErrBatchTooLarge  = errors.New("update batch exceeds store limit")
)
