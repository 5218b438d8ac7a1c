package account

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient    Role = "PATIENT"
	RoleDoctor     Role = "DOCTOR"
	RoleAdmin      Role = "ADMIN"
	RoleUnassigned Role = "UNASSIGNED"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

type Account struct {
	ID           uuid.UUID           `json:"id"`
	Role         Role                `json:"role"`
	Verification *VerificationStatus `json:"verification_status,omitempty"`
	Credits      int64               `json:"credits"`
	Name         *string             `json:"name,omitempty"`
	Email        *string             `json:"email,omitempty"`
	Specialty    *string             `json:"specialty,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func (a *Account) IsVerifiedDoctor() bool {
	return a != nil &&
		a.Role == RoleDoctor &&
		a.Verification != nil &&
		*a.Verification == VerificationVerified
}

// Profile carries the optional details captured during onboarding.
type Profile struct {
	Name      *string
	Email     *string
	Specialty *string
}
