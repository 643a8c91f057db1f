package model

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	RolePatient UserRole = "patient"
	RoleDoctor  UserRole = "doctor"
)

// User is the minimal identity the orchestration core needs: someone to
// name and to email. The full profile lives outside this service.
type User struct {
	ID          uuid.UUID
	DisplayName string
	Email       string
	Role        UserRole
	CreatedAt   time.Time
}
