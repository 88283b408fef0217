package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrMissingUser    = errors.New("user address is required")
	ErrInvalidAddress = errors.New("invalid user address")
	ErrFetchFailed    = errors.New("upstream fetch failed")
	ErrContextDone    = errors.New("context cancelled")
)
