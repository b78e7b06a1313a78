package service

import "errors"

// Errors returned to the HTTP layer, which owns their status codes.
var (
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrEmailTaken         = errors.New("email already in use")
	ErrDomainNotAllowed   = errors.New("email domain not allowed")
	ErrUnknownAccount     = errors.New("unknown account")
	ErrWrongPassword      = errors.New("wrong password")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrUnknownOwner       = errors.New("unknown owner")
	ErrInvalidSensorType  = errors.New("invalid sensor type")
	ErrInvalidSensorValue = errors.New("invalid sensor value")
	ErrInvalidTimeframe   = errors.New("invalid timeframe")
)
