package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/telehealth-scheduling/internal/account"
	"github.com/hackgods/telehealth-scheduling/internal/apperr"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/eventlog"
	"github.com/hackgods/telehealth-scheduling/internal/ledger"
	"github.com/hackgods/telehealth-scheduling/internal/metrics"
)

var (
	ErrNotAdmin           = apperr.New(apperr.KindUnauthorized, "admin role required")
	ErrNotVerifiedDoctor  = apperr.New(apperr.KindUnauthorized, "only verified doctors can request payouts")
	ErrAlreadyProcessed   = apperr.New(apperr.KindInvalidState, "payout is not in PROCESSING state")
	ErrInvalidCredits     = apperr.New(apperr.KindValidation, "credits must be positive")
	ErrInvalidPayPalEmail = apperr.New(apperr.KindValidation, "a valid paypal email is required")
	ErrCreditsCommitted   = apperr.New(apperr.KindInsufficientCredits, "credits are held for upcoming appointments that may still be refunded")
)

var tracer = otel.Tracer("github.com/hackgods/telehealth-scheduling/internal/payout")

type Accounts interface {
	Get(ctx context.Context, id uuid.UUID) (*account.Account, error)
}

type Ledger interface {
	Balance(ctx context.Context, q db.DBTX, accountID uuid.UUID) (int64, error)
	Transfer(ctx context.Context, q db.DBTX, from uuid.UUID, to *uuid.UUID, amount int64, typ ledger.Type, ref ledger.Ref) ([]ledger.Transaction, error)
}

// Commitments reports the credits a doctor must keep to refund appointments
// that can still be cancelled.
type Commitments interface {
	CommittedCredits(ctx context.Context, q db.DBTX, doctorID uuid.UUID) (int64, error)
}

type Processor struct {
	repo     Repository
	runner   db.TxRunner
	pool     db.DBTX
	accounts Accounts
	ledger   Ledger
	held     Commitments
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewProcessor(repo Repository, runner db.TxRunner, pool db.DBTX, accounts Accounts, l Ledger, held Commitments, m *metrics.Metrics, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		repo:     repo,
		runner:   runner,
		pool:     pool,
		accounts: accounts,
		ledger:   l,
		held:     held,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Request opens a payout for a verified doctor. Credits stay on the doctor's
// balance until an admin approves the payout.
func (p *Processor) Request(ctx context.Context, doctorID uuid.UUID, credits int64, paypalEmail string) (*Payout, error) {
	doctor, err := p.accounts.Get(ctx, doctorID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, ErrNotVerifiedDoctor
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.IsVerifiedDoctor() {
		return nil, ErrNotVerifiedDoctor
	}
	if credits <= 0 {
		return nil, ErrInvalidCredits
	}
	if _, err := mail.ParseAddress(paypalEmail); err != nil {
		return nil, ErrInvalidPayPalEmail
	}

	payout := &Payout{
		ID:          uuid.New(),
		DoctorID:    doctorID,
		Credits:     credits,
		PayPalEmail: paypalEmail,
		Status:      StatusProcessing,
	}
	payout.amounts()

	err = p.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		if err := p.repo.LockDoctor(ctx, q, doctorID); err != nil {
			return err
		}

		pending, err := p.repo.HasProcessing(ctx, q, doctorID)
		if err != nil {
			return err
		}
		if pending {
			return ErrPayoutPending
		}

		if err := p.checkWithdrawable(ctx, q, doctorID, credits); err != nil {
			return err
		}

		if err := p.repo.Insert(ctx, q, payout); err != nil {
			return err
		}
		return p.repo.InsertEvent(ctx, q, eventlog.New(eventlog.PayoutRequested, nil, map[string]any{
			"payout_id": payout.ID.String(),
			"doctor_id": doctorID.String(),
			"credits":   credits,
		}))
	})
	if err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "payout requested", "payout_id", payout.ID, "doctor_id", doctorID, "credits", credits)
	return payout, nil
}

// Approve debits the doctor and marks the payout PROCESSED in one
// transaction. A payout can be approved once; a second call fails with
// ErrAlreadyProcessed and changes nothing.
func (p *Processor) Approve(ctx context.Context, payoutID, adminID uuid.UUID) (*Payout, error) {
	ctx, span := tracer.Start(ctx, "payout.Approve", trace.WithAttributes(
		attribute.String("payout.id", payoutID.String()),
	))
	defer span.End()

	out, err := p.approve(ctx, payoutID, adminID)
	p.metrics.ObservePayout(metrics.Outcome(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (p *Processor) approve(ctx context.Context, payoutID, adminID uuid.UUID) (*Payout, error) {
	if err := p.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	var processed *Payout
	err := p.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		payout, err := p.repo.GetForUpdate(ctx, q, payoutID)
		if err != nil {
			return err
		}
		if payout.Status != StatusProcessing {
			return ErrAlreadyProcessed
		}
		// Bookings made since the request may have committed part of it.
		if err := p.checkWithdrawable(ctx, q, payout.DoctorID, payout.Credits); err != nil {
			return err
		}

		_, err = p.ledger.Transfer(ctx, q, payout.DoctorID, nil, payout.Credits,
			ledger.TypeAdminAdjustment, ledger.Ref{PayoutID: &payout.ID})
		if err != nil {
			return err
		}

		updated, err := p.repo.MarkProcessed(ctx, q, payout.ID, adminID, p.now().UTC())
		if err != nil {
			return err
		}

		if err := p.repo.InsertEvent(ctx, q, eventlog.New(eventlog.PayoutProcessed, nil, map[string]any{
			"payout_id":  payout.ID.String(),
			"doctor_id":  payout.DoctorID.String(),
			"credits":    payout.Credits,
			"net_amount": payout.NetAmountCents,
			"admin_id":   adminID.String(),
		})); err != nil {
			return err
		}

		processed = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "payout processed",
		"payout_id", processed.ID, "doctor_id", processed.DoctorID, "credits", processed.Credits, "admin_id", adminID)
	return processed, nil
}

// checkWithdrawable fails unless credits fit in the doctor's balance less what
// upcoming appointments have committed.
func (p *Processor) checkWithdrawable(ctx context.Context, q db.DBTX, doctorID uuid.UUID, credits int64) error {
	balance, err := p.ledger.Balance(ctx, q, doctorID)
	if err != nil {
		return err
	}
	if credits > balance {
		return ledger.ErrInsufficientCredits
	}
	if p.held == nil {
		return nil
	}
	committed, err := p.held.CommittedCredits(ctx, q, doctorID)
	if err != nil {
		return fmt.Errorf("committed credits: %w", err)
	}
	if credits > balance-committed {
		return ErrCreditsCommitted
	}
	return nil
}

func (p *Processor) ListPending(ctx context.Context, adminID uuid.UUID, limit int) ([]Payout, error) {
	if err := p.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return p.repo.ListByStatus(ctx, p.pool, StatusProcessing, limit)
}

func (p *Processor) requireAdmin(ctx context.Context, id uuid.UUID) error {
	a, err := p.accounts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return ErrNotAdmin
		}
		return err
	}
	if a.Role != account.RoleAdmin {
		return ErrNotAdmin
	}
	return nil
}
