package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentRecordStatus string

const (
	PaymentRecordCaptured   PaymentRecordStatus = "captured"
	PaymentRecordAuthorized PaymentRecordStatus = "authorized"
	PaymentRecordRefunded   PaymentRecordStatus = "refunded"
)

// PaymentRecord is one row of the append-only payment ledger, created once
// per successfully verified transaction. Refunds update Status; rows are
// never deleted.
type PaymentRecord struct {
	ID               uuid.UUID
	AppointmentID    uuid.UUID
	GatewayPaymentID string
	GatewayOrderID   string
	Amount           int64
	Currency         string
	Status           PaymentRecordStatus
	Method           string
	// RawPayload keeps the gateway's payment object verbatim for audit.
	RawPayload []byte
	CreatedAt  time.Time
}
