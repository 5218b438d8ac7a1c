package account

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/apperr"
)

var (
	ErrAccountNotFound = apperr.New(apperr.KindNotFound, "account not found")
	ErrDoctorNotFound  = apperr.New(apperr.KindNotFound, "doctor not found")
	ErrRoleAlreadySet  = apperr.New(apperr.KindInvalidState, "role has already been chosen")
	ErrNotAdmin        = apperr.New(apperr.KindUnauthorized, "admin role required")
	ErrInvalidRole     = apperr.New(apperr.KindValidation, "role must be PATIENT or DOCTOR")
	ErrInvalidStatus   = apperr.New(apperr.KindValidation, "invalid verification status")
	ErrInvalidCredits  = apperr.New(apperr.KindValidation, "credits must be a positive amount")
)

type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Account, error)

	// Ensure creates the account on first access and returns it.
	Ensure(ctx context.Context, id uuid.UUID) (*Account, error)

	// AssignRole only succeeds while the account is UNASSIGNED.
	AssignRole(ctx context.Context, id uuid.UUID, role Role, status *VerificationStatus, p Profile) (*Account, error)
	SetVerification(ctx context.Context, id uuid.UUID, status VerificationStatus) (*Account, error)
	ListPendingDoctors(ctx context.Context, limit int) ([]Account, error)
}

// Cache holds verified doctor lookups for a bounded time. Get returns
// (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, id uuid.UUID) (*Account, error)
	Set(ctx context.Context, a *Account) error
	Delete(ctx context.Context, id uuid.UUID) error
}
