package common

import "errors"

var (
	ErrNoData            = errors.New("no tick data available")
	ErrInvalidOrder      = errors.New("tick stream ordering violated")
	ErrInvalidStop       = errors.New("stop would execute immediately")
	ErrRefillFailure     = errors.New("tick refill failed")
	ErrPositionNotFound  = errors.New("position is not found")
	ErrNoPrice           = errors.New("no price available for instrument")
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrInvalidSize       = errors.New("size must be positive")
)
