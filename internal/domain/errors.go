package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrOracleUnavailable = errors.New("price oracle unavailable")
	ErrInvalidPrice      = errors.New("invalid price")
)
