package payment

import "errors"

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrAlreadyPaid         = errors.New("appointment is already paid")
	ErrBelowMinimum        = errors.New("amount is below the gateway minimum")
	ErrSignatureMismatch   = errors.New("payment signature verification failed")
	ErrPaymentNotCaptured  = errors.New("payment is neither captured nor authorized at the gateway")
	ErrOrderMismatch       = errors.New("payment does not belong to this appointment's order")
	ErrNoPayment           = errors.New("appointment has no captured payment")
	ErrAlreadyRefunded     = errors.New("refund has already been processed")
	ErrNoRefundAvailable   = errors.New("cancellation window allows no refund")
)
