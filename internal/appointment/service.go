package appointment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/telehealth-scheduling/internal/account"
	"github.com/hackgods/telehealth-scheduling/internal/apperr"
	"github.com/hackgods/telehealth-scheduling/internal/availability"
	"github.com/hackgods/telehealth-scheduling/internal/config"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/eventlog"
	"github.com/hackgods/telehealth-scheduling/internal/ledger"
	"github.com/hackgods/telehealth-scheduling/internal/metrics"
	redisclient "github.com/hackgods/telehealth-scheduling/internal/redis"
)

var (
	ErrNotPatient       = apperr.New(apperr.KindUnauthorized, "only patients can book appointments")
	ErrNotParticipant   = apperr.New(apperr.KindUnauthorized, "not a participant of this appointment")
	ErrNotDoctor        = apperr.New(apperr.KindUnauthorized, "only the appointment's doctor can do this")
	ErrInvalidSlot      = apperr.New(apperr.KindValidation, "appointment must span exactly one slot")
	ErrSlotInPast       = apperr.New(apperr.KindValidation, "slot has already started")
	ErrOutsideWindow    = apperr.New(apperr.KindValidation, "slot is not offered by the doctor's availability window")
	ErrNotScheduled     = apperr.New(apperr.KindInvalidState, "appointment is not scheduled")
	ErrNotCancelled     = apperr.New(apperr.KindInvalidState, "only cancelled appointments can be deleted")
	ErrAlreadyStarted   = apperr.New(apperr.KindInvalidState, "appointment has already started")
	ErrNotStarted       = apperr.New(apperr.KindInvalidState, "appointment has not started yet")
	ErrJoinWindowClosed = apperr.New(apperr.KindInvalidState, "join window has closed")
	ErrVideoUnavailable = apperr.New(apperr.KindUpstreamUnavailable, "video temporarily unavailable")
	ErrRefundBlocked    = apperr.New(apperr.KindInvalidState, "doctor balance cannot cover the refund; contact support")
)

var tracer = otel.Tracer("github.com/hackgods/telehealth-scheduling/internal/appointment")

type Accounts interface {
	Get(ctx context.Context, id uuid.UUID) (*account.Account, error)
}

type Ledger interface {
	Balance(ctx context.Context, q db.DBTX, accountID uuid.UUID) (int64, error)
	Transfer(ctx context.Context, q db.DBTX, from uuid.UUID, to *uuid.UUID, amount int64, typ ledger.Type, ref ledger.Ref) ([]ledger.Transaction, error)
}

// Windows resolves a doctor's daily availability window.
type Windows interface {
	Window(ctx context.Context, doctorID uuid.UUID) (availability.Window, error)
}

// Video is the external session provider.
type Video interface {
	CreateSession(ctx context.Context) (string, error)
	IssueJoinToken(sessionID string, expireAt time.Time) (string, error)
}

type Deps struct {
	Repo     Repository
	Runner   db.TxRunner
	Pool     db.DBTX
	Accounts Accounts
	Windows  Windows
	Ledger   Ledger
	Video    Video
	Locker   redisclient.Locker
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type Service struct {
	repo     Repository
	runner   db.TxRunner
	pool     db.DBTX
	accounts Accounts
	windows  Windows
	ledger   Ledger
	video    Video
	locker   redisclient.Locker
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      config.Config
	now      func() time.Time
}

func NewService(d Deps, cfg config.Config) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     d.Repo,
		runner:   d.Runner,
		pool:     d.Pool,
		accounts: d.Accounts,
		windows:  d.Windows,
		ledger:   d.Ledger,
		video:    d.Video,
		locker:   d.Locker,
		metrics:  d.Metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Book reserves one slot for a patient and charges the booking cost.
//
// The video session is created first, outside the store transaction, so a
// slow provider never holds the doctor lock. A failed session call is not
// fatal: the appointment is stored without one and the backfill worker
// attaches it later. The transaction then takes the doctor lock, re-checks
// balance and overlap, inserts the appointment and moves the credits. If the
// transfer fails nothing is stored; the session id is simply discarded.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.Book", trace.WithAttributes(
		attribute.String("patient.id", req.PatientID.String()),
		attribute.String("doctor.id", req.DoctorID.String()),
	))
	defer span.End()

	started := time.Now()
	appt, err := s.book(ctx, req)
	s.metrics.ObserveBooking(metrics.Outcome(err), time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return appt, nil
}

func (s *Service) book(ctx context.Context, req BookRequest) (*Appointment, error) {
	patient, err := s.accounts.Get(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, ErrNotPatient
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if patient.Role != account.RolePatient {
		return nil, ErrNotPatient
	}

	// Authoritative read; the resolver's cached view is not trusted here.
	doctor, err := s.accounts.Get(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, account.ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.IsVerifiedDoctor() {
		return nil, account.ErrDoctorNotFound
	}

	start, end := req.Start.UTC(), req.End.UTC()
	if !start.Before(end) || end.Sub(start) != s.cfg.SlotDuration {
		return nil, ErrInvalidSlot
	}
	if start.Before(s.now()) {
		return nil, ErrSlotInPast
	}
	slot := availability.Interval{Start: start, End: end}
	window, err := s.window(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !window.Admits(slot, s.cfg.SlotDuration) {
		return nil, ErrOutsideWindow
	}

	if patient.Credits < s.cfg.BookingCost {
		return nil, ledger.ErrInsufficientCredits
	}

	busy, err := s.repo.ScheduledIntervals(ctx, s.pool, req.DoctorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("check overlap: %w", err)
	}
	if availability.OverlapsAny(slot, busy) {
		return nil, ErrSlotUnavailable
	}

	appt := &Appointment{
		ID:             uuid.New(),
		PatientID:      req.PatientID,
		DoctorID:       req.DoctorID,
		StartTime:      start,
		EndTime:        end,
		Status:         StatusScheduled,
		VideoSessionID: s.createSession(ctx),
	}
	if d := strings.TrimSpace(req.Description); d != "" {
		appt.Description = &d
	}

	err = s.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		if err := s.repo.LockDoctor(ctx, q, req.DoctorID); err != nil {
			return err
		}

		balance, err := s.ledger.Balance(ctx, q, req.PatientID)
		if err != nil {
			return err
		}
		if balance < s.cfg.BookingCost {
			return ledger.ErrInsufficientCredits
		}

		busy, err := s.repo.ScheduledIntervals(ctx, q, req.DoctorID, start, end)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if availability.OverlapsAny(slot, busy) {
			return ErrSlotUnavailable
		}

		if err := s.repo.Insert(ctx, q, appt); err != nil {
			return err
		}

		doctorID := req.DoctorID
		_, err = s.ledger.Transfer(ctx, q, req.PatientID, &doctorID, s.cfg.BookingCost,
			ledger.TypeAppointmentDeduction, ledger.Ref{AppointmentID: &appt.ID})
		if err != nil {
			return err
		}

		return s.repo.InsertEvent(ctx, q, eventlog.New(eventlog.AppointmentBooked, &appt.ID, map[string]any{
			"patient_id": req.PatientID.String(),
			"doctor_id":  req.DoctorID.String(),
			"start_time": start,
			"credits":    s.cfg.BookingCost,
			"has_video":  appt.VideoSessionID != nil,
		}))
	})
	if err != nil {
		if appt.VideoSessionID != nil {
			s.logger.InfoContext(ctx, "booking failed after session creation, session left unused",
				"session_id", *appt.VideoSessionID, "error", err)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "appointment booked",
		"appointment_id", appt.ID, "patient_id", appt.PatientID, "doctor_id", appt.DoctorID,
		"start_time", appt.StartTime)
	return appt, nil
}

func (s *Service) window(ctx context.Context, doctorID uuid.UUID) (availability.Window, error) {
	if s.windows == nil {
		return availability.DefaultWindow, nil
	}
	w, err := s.windows.Window(ctx, doctorID)
	if err != nil {
		return availability.Window{}, fmt.Errorf("load availability window: %w", err)
	}
	return w, nil
}

// createSession returns nil when the provider cannot be reached in time.
func (s *Service) createSession(ctx context.Context) *string {
	if s.video == nil {
		return nil
	}
	if s.cfg.VideoTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.VideoTimeout)
		defer cancel()
	}

	id, err := s.video.CreateSession(ctx)
	s.metrics.ObserveSessionCreate(err == nil)
	if err != nil {
		s.logger.WarnContext(ctx, "video session creation failed", "error", err)
		return nil
	}
	return &id
}

// Cancel frees the slot and refunds the booking cost to the patient.
func (s *Service) Cancel(ctx context.Context, accountID, id uuid.UUID) (*Appointment, error) {
	var cancelled *Appointment

	err := s.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		appt, err := s.repo.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if !appt.IsParticipant(accountID) {
			return ErrNotParticipant
		}
		if appt.Status != StatusScheduled {
			return ErrNotScheduled
		}
		if !s.now().Before(appt.StartTime) {
			return ErrAlreadyStarted
		}

		updated, err := s.repo.UpdateStatus(ctx, q, id, StatusScheduled, StatusCancelled)
		if err != nil {
			return err
		}

		patientID := appt.PatientID
		_, err = s.ledger.Transfer(ctx, q, appt.DoctorID, &patientID, s.cfg.BookingCost,
			ledger.TypeAppointmentDeduction, ledger.Ref{AppointmentID: &appt.ID})
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			// Payouts leave committed credits alone, so only a manual debit
			// of the doctor gets here.
			s.logger.ErrorContext(ctx, "refund not covered by doctor balance",
				"appointment_id", appt.ID, "doctor_id", appt.DoctorID)
			return ErrRefundBlocked
		}
		if err != nil {
			return err
		}

		if err := s.repo.InsertEvent(ctx, q, eventlog.New(eventlog.AppointmentCancelled, &appt.ID, map[string]any{
			"cancelled_by": accountID.String(),
			"refunded":     s.cfg.BookingCost,
		})); err != nil {
			return err
		}

		cancelled = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "appointment cancelled", "appointment_id", id, "cancelled_by", accountID)
	return cancelled, nil
}

// Complete is called by the doctor once the consultation has started.
func (s *Service) Complete(ctx context.Context, doctorID, id uuid.UUID) (*Appointment, error) {
	var completed *Appointment

	err := s.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		appt, err := s.repo.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if appt.DoctorID != doctorID {
			return ErrNotDoctor
		}
		if appt.Status != StatusScheduled {
			return ErrNotScheduled
		}
		if s.now().Before(appt.StartTime) {
			return ErrNotStarted
		}

		updated, err := s.repo.UpdateStatus(ctx, q, id, StatusScheduled, StatusCompleted)
		if err != nil {
			return err
		}
		if err := s.repo.InsertEvent(ctx, q, eventlog.New(eventlog.AppointmentCompleted, &appt.ID, map[string]any{})); err != nil {
			return err
		}

		completed = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// Delete removes a cancelled appointment. Ledger rows keep their history.
func (s *Service) Delete(ctx context.Context, accountID, id uuid.UUID) error {
	return s.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		appt, err := s.repo.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if !appt.IsParticipant(accountID) {
			return ErrNotParticipant
		}
		if appt.Status != StatusCancelled {
			return ErrNotCancelled
		}

		if err := s.repo.Delete(ctx, q, id); err != nil {
			return err
		}
		return s.repo.InsertEvent(ctx, q, eventlog.New(eventlog.AppointmentDeleted, &appt.ID, map[string]any{
			"deleted_by": accountID.String(),
		}))
	})
}

// JoinToken issues credentials for the appointment's video session. The
// token stays valid until the appointment end plus the configured grace.
func (s *Service) JoinToken(ctx context.Context, accountID, id uuid.UUID) (*JoinCredentials, error) {
	ctx, span := tracer.Start(ctx, "appointment.JoinToken", trace.WithAttributes(
		attribute.String("appointment.id", id.String()),
	))
	defer span.End()

	creds, err := s.joinToken(ctx, accountID, id)
	s.metrics.ObserveJoinToken(metrics.Outcome(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return creds, nil
}

func (s *Service) joinToken(ctx context.Context, accountID, id uuid.UUID) (*JoinCredentials, error) {
	appt, err := s.repo.Get(ctx, s.pool, id)
	if err != nil {
		return nil, err
	}
	if !appt.IsParticipant(accountID) {
		return nil, ErrNotParticipant
	}
	if appt.Status != StatusScheduled {
		return nil, ErrNotScheduled
	}
	if appt.VideoSessionID == nil {
		return nil, ErrVideoUnavailable
	}

	expireAt := appt.EndTime.Add(s.cfg.JoinGrace)
	if !s.now().Before(expireAt) {
		return nil, ErrJoinWindowClosed
	}

	token, err := s.video.IssueJoinToken(*appt.VideoSessionID, expireAt)
	if err != nil {
		return nil, fmt.Errorf("issue join token: %w", err)
	}
	if err := s.repo.SetSessionToken(ctx, s.pool, id, token); err != nil {
		return nil, err
	}

	return &JoinCredentials{
		SessionID: *appt.VideoSessionID,
		Token:     token,
		ExpiresAt: expireAt,
	}, nil
}

// Get returns an appointment to one of its participants.
func (s *Service) Get(ctx context.Context, accountID, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.Get(ctx, s.pool, id)
	if err != nil {
		return nil, err
	}
	if !appt.IsParticipant(accountID) {
		return nil, ErrNotParticipant
	}
	return appt, nil
}

// ListForAccount lists appointments where the account is patient or doctor.
func (s *Service) ListForAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListForAccount(ctx, s.pool, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments for account: %w", err)
	}
	return appointments, nil
}

// CommittedCredits is what the doctor has been paid for appointments that can
// still be cancelled. Those credits must stay on the balance to fund refunds.
func (s *Service) CommittedCredits(ctx context.Context, q db.DBTX, doctorID uuid.UUID) (int64, error) {
	n, err := s.repo.CountUpcoming(ctx, q, doctorID, s.now())
	if err != nil {
		return 0, err
	}
	return int64(n) * s.cfg.BookingCost, nil
}

// BusyIntervals lets the availability resolver see SCHEDULED appointments.
func (s *Service) BusyIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]availability.Interval, error) {
	return s.repo.ScheduledIntervals(ctx, s.pool, doctorID, from, to)
}

// BackfillSessions attaches video sessions to upcoming appointments that were
// booked while the provider was unavailable. Each appointment is handled
// under its own lock so concurrent workers never mint two sessions for it.
func (s *Service) BackfillSessions(ctx context.Context, limit int) (int, error) {
	pending, err := s.repo.ListMissingSession(ctx, s.pool, s.now(), limit)
	if err != nil {
		return 0, err
	}

	attached := 0
	for _, appt := range pending {
		err := s.withLock(ctx, "appointment-session:"+appt.ID.String(), func(ctx context.Context) error {
			sessionID := s.createSession(ctx)
			if sessionID == nil {
				return ErrVideoUnavailable
			}

			ok, err := s.repo.AttachSession(ctx, s.pool, appt.ID, *sessionID)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			attached++

			if err := s.repo.InsertEvent(ctx, s.pool, eventlog.New(eventlog.SessionAttached, &appt.ID, map[string]any{
				"session_id": *sessionID,
			})); err != nil {
				s.logger.WarnContext(ctx, "session event not recorded", "appointment_id", appt.ID, "error", err)
			}
			return nil
		})

		switch {
		case err == nil:
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			s.logger.DebugContext(ctx, "appointment held by another worker", "appointment_id", appt.ID)
		default:
			s.logger.WarnContext(ctx, "session backfill failed", "appointment_id", appt.ID, "error", err)
		}

		if ctx.Err() != nil {
			return attached, ctx.Err()
		}
	}

	return attached, nil
}

func (s *Service) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithLock(ctx, key, fn)
}
