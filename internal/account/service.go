package account

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/ledger"
)

// Ledger is the part of the credit ledger the account service drives.
type Ledger interface {
	Grant(ctx context.Context, q db.DBTX, accountID uuid.UUID, amount int64, typ ledger.Type, ref ledger.Ref) (*ledger.Transaction, error)
	Transfer(ctx context.Context, q db.DBTX, from uuid.UUID, to *uuid.UUID, amount int64, typ ledger.Type, ref ledger.Ref) ([]ledger.Transaction, error)
	Reconcile(ctx context.Context, q db.DBTX, accountID uuid.UUID) (*ledger.Reconciliation, error)
	History(ctx context.Context, q db.DBTX, accountID uuid.UUID, limit int) ([]ledger.Transaction, error)
}

type Service struct {
	repo   Repository
	cache  Cache
	runner db.TxRunner
	pool   db.DBTX
	ledger Ledger
	logger *slog.Logger
}

// NewService wires the account service. cache may be nil, in which case
// doctor lookups always hit the store.
func NewService(repo Repository, cache Cache, runner db.TxRunner, pool db.DBTX, l Ledger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		runner: runner,
		pool:   pool,
		ledger: l,
		logger: logger,
	}
}

// Current returns the caller's account, creating it on first access.
func (s *Service) Current(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.Ensure(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.Get(ctx, id)
}

// ChooseRole moves an UNASSIGNED account to PATIENT or DOCTOR. Doctors start
// out PENDING verification.
func (s *Service) ChooseRole(ctx context.Context, id uuid.UUID, role Role, p Profile) (*Account, error) {
	var status *VerificationStatus
	switch role {
	case RolePatient:
	case RoleDoctor:
		pending := VerificationPending
		status = &pending
	default:
		return nil, ErrInvalidRole
	}

	a, err := s.repo.AssignRole(ctx, id, role, status, p)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "role chosen", "account_id", id, "role", role)
	return a, nil
}

func (s *Service) SetVerification(ctx context.Context, adminID, doctorID uuid.UUID, status VerificationStatus) (*Account, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	a, err := s.repo.SetVerification(ctx, doctorID, status)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, doctorID); err != nil {
			s.logger.WarnContext(ctx, "doctor cache invalidation failed", "doctor_id", doctorID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "doctor verification updated",
		"doctor_id", doctorID, "status", status, "admin_id", adminID)
	return a, nil
}

// Doctor returns a verified doctor. Lookups are served from the cache when
// possible, so the result may lag a verification change by the cache TTL.
func (s *Service) Doctor(ctx context.Context, id uuid.UUID) (*Account, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "doctor cache read failed", "doctor_id", id, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	a, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	if !a.IsVerifiedDoctor() {
		return nil, ErrDoctorNotFound
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, a); err != nil {
			s.logger.WarnContext(ctx, "doctor cache write failed", "doctor_id", id, "error", err)
		}
	}
	return a, nil
}

// PurchaseCredits records a completed checkout as a CREDIT_PURCHASE.
func (s *Service) PurchaseCredits(ctx context.Context, id uuid.UUID, credits int64) (*Account, error) {
	if credits <= 0 {
		return nil, ErrInvalidCredits
	}

	err := s.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		_, err := s.ledger.Grant(ctx, q, id, credits, ledger.TypeCreditPurchase, ledger.Ref{})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "credits purchased", "account_id", id, "credits", credits)
	return s.repo.Get(ctx, id)
}

// AdjustCredits applies a signed admin correction. Negative adjustments
// cannot take the balance below zero.
func (s *Service) AdjustCredits(ctx context.Context, adminID, id uuid.UUID, delta int64) (*Account, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, ErrInvalidCredits
	}

	err := s.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		if delta > 0 {
			_, err := s.ledger.Grant(ctx, q, id, delta, ledger.TypeAdminAdjustment, ledger.Ref{})
			return err
		}
		_, err := s.ledger.Transfer(ctx, q, id, nil, -delta, ledger.TypeAdminAdjustment, ledger.Ref{})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "credits adjusted", "account_id", id, "delta", delta, "admin_id", adminID)
	return s.repo.Get(ctx, id)
}

func (s *Service) Reconcile(ctx context.Context, adminID, id uuid.UUID) (*ledger.Reconciliation, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.ledger.Reconcile(ctx, s.pool, id)
}

func (s *Service) History(ctx context.Context, id uuid.UUID, limit int) ([]ledger.Transaction, error) {
	return s.ledger.History(ctx, s.pool, id, limit)
}

func (s *Service) ListPendingDoctors(ctx context.Context, adminID uuid.UUID, limit int) ([]Account, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.ListPendingDoctors(ctx, limit)
}

func (s *Service) requireAdmin(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrNotAdmin
		}
		return err
	}
	if a.Role != RoleAdmin {
		return ErrNotAdmin
	}
	return nil
}
