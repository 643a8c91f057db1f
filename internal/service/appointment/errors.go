package appointment

import "errors"

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrStartTimeInPast   = errors.New("appointment start time is in the past")
	ErrSamePartner       = errors.New("patient and doctor must differ")
	ErrInvalidTransition = errors.New("invalid appointment status transition")
)
