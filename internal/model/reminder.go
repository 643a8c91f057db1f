package model

import (
	"time"

	"github.com/google/uuid"
)

type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	ReminderSent    ReminderStatus = "sent"
	ReminderFailed  ReminderStatus = "failed"
	ReminderSkipped ReminderStatus = "skipped"
)

// IsTerminal reports whether no further automated transition applies.
func (s ReminderStatus) IsTerminal() bool {
	return s == ReminderSent || s == ReminderFailed || s == ReminderSkipped
}

// ReminderRecord is one scheduled reminder for an appointment. At most one
// row exists per (appointment, kind); the pair is unique at the database
// level. Only the sweep moves a row out of pending, into exactly one
// terminal state.
type ReminderRecord struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Kind          string // e.g. "24h_before"
	ScheduledFor  time.Time
	Status        ReminderStatus
	ErrorMessage  *string
	SentAt        *time.Time
	CreatedAt     time.Time
}
