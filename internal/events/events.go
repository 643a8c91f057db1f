// Package events defines the NATS subjects and payloads exchanged between
// the appointment service and the background workers.
package events

import (
	"github.com/google/uuid"
)

const (
	SubjectAppointmentAccepted  = "medora.appointment.accepted"
	SubjectAppointmentCancelled = "medora.appointment.cancelled"
)

// AppointmentAcceptedSubject returns the per-appointment subject; workers
// subscribe with a trailing wildcard.
func AppointmentAcceptedSubject(id uuid.UUID) string {
	return SubjectAppointmentAccepted + "." + id.String()
}

func AppointmentCancelledSubject(id uuid.UUID) string {
	return SubjectAppointmentCancelled + "." + id.String()
}

type AppointmentEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Reason        string    `json:"reason,omitempty"`
}
