package domain

import "errors"

var (
	ErrValidation      = errors.New("validation failed")
	ErrConfiguration   = errors.New("configuration missing")
	ErrProvider        = errors.New("provider failure")
	ErrMediaTool       = errors.New("media tool failure")
	ErrNotFound        = errors.New("not found")
	ErrPaymentRequired = errors.New("payment required")
	ErrCapacity        = errors.New("too many jobs in flight")
	ErrTerminal        = errors.New("job already finished")
	ErrDuplicate       = errors.New("duplicate job id")
)
