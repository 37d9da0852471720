package storage

import "errors"

var (
	ErrNotFound    = errors.New("storage: not found")
	ErrInvalidCID  = errors.New("storage: invalid cid")
	ErrCIDMismatch = errors.New("storage: cid mismatch")
	ErrImmutable   = errors.New("storage: immutable object mismatch")
	ErrNoBackends  = errors.New("storage: no backends configured")

	// ErrInvalidRecord is returned when bytes offered as a definition record
	// do not decode as one.
	ErrInvalidRecord = errors.New("storage: invalid definition record")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
