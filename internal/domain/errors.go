package domain

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrNoHistory   = errors.New("no history")
	ErrRateLimited = errors.New("rate limited")
	ErrBadCapacity = errors.New("history capacity must be positive")
)
