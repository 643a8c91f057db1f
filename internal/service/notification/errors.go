package notification

import "errors"

var (
	ErrUnknownKind  = errors.New("unknown notification kind")
	ErrNoRecipient  = errors.New("notification recipient is empty")
	ErrDeliveryFail = errors.New("notification delivery failed")
)
