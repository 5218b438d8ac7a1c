package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/telehealth-scheduling/internal/account"
	"github.com/hackgods/telehealth-scheduling/internal/apperr"
)

const maxDays = 14

var (
	ErrInvalidDays = apperr.New(apperr.KindValidation, fmt.Sprintf("days must be between 1 and %d", maxDays))
	ErrNotDoctor   = apperr.New(apperr.KindUnauthorized, "only doctors can set availability")
)

var tracer = otel.Tracer("github.com/hackgods/telehealth-scheduling/internal/availability")

type Accounts interface {
	Get(ctx context.Context, id uuid.UUID) (*account.Account, error)
	// Doctor returns only verified doctors and may serve a cached copy.
	Doctor(ctx context.Context, id uuid.UUID) (*account.Account, error)
}

// BusyLister returns the intervals of a doctor's SCHEDULED appointments that
// overlap [from, to).
type BusyLister interface {
	BusyIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Interval, error)
}

type Query struct {
	Days int
	Slot time.Duration
	Now  time.Time
}

type Resolver struct {
	accounts Accounts
	windows  WindowStore
	busy     BusyLister
	days     int
	slot     time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewResolver(accounts Accounts, windows WindowStore, busy BusyLister, days int, slot time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		accounts: accounts,
		windows:  windows,
		busy:     busy,
		days:     days,
		slot:     slot,
		now:      time.Now,
		logger:   logger,
	}
}

// ComputeSlots lists a verified doctor's open slots, grouped per day. Zero
// fields in q fall back to the resolver defaults.
func (r *Resolver) ComputeSlots(ctx context.Context, doctorID uuid.UUID, q Query) ([]DaySlots, error) {
	ctx, span := tracer.Start(ctx, "availability.ComputeSlots")
	defer span.End()
	span.SetAttributes(attribute.String("doctor.id", doctorID.String()))

	if q.Days == 0 {
		q.Days = r.days
	}
	if q.Days < 1 || q.Days > maxDays {
		return nil, ErrInvalidDays
	}
	if q.Slot <= 0 {
		q.Slot = r.slot
	}
	if q.Now.IsZero() {
		q.Now = r.now()
	}

	if _, err := r.accounts.Doctor(ctx, doctorID); err != nil {
		return nil, err
	}

	w, err := r.Window(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	now := q.Now.UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, q.Days)

	busy, err := r.busy.BusyIntervals(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list busy intervals: %w", err)
	}

	return slices.Collect(Days(w, q.Days, q.Slot, q.Now, busy)), nil
}

// Window returns the doctor's configured window or DefaultWindow.
func (r *Resolver) Window(ctx context.Context, doctorID uuid.UUID) (Window, error) {
	return NewWindowLookup(r.windows).Window(ctx, doctorID)
}

// SetWindow replaces the caller's daily window. Any doctor may set one,
// verified or not.
func (r *Resolver) SetWindow(ctx context.Context, doctorID uuid.UUID, w Window) (Window, error) {
	a, err := r.accounts.Get(ctx, doctorID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return Window{}, ErrNotDoctor
		}
		return Window{}, err
	}
	if a.Role != account.RoleDoctor {
		return Window{}, ErrNotDoctor
	}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}

	saved, err := r.windows.UpsertWindow(ctx, doctorID, w)
	if err != nil {
		return Window{}, err
	}

	r.logger.InfoContext(ctx, "availability window updated", "doctor_id", doctorID, "window", saved.String())
	return saved, nil
}
