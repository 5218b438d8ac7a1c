package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/apperr"
	"github.com/hackgods/telehealth-scheduling/internal/availability"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/eventlog"
)

var (
	ErrAppointmentNotFound = apperr.New(apperr.KindNotFound, "appointment not found")
	ErrSlotUnavailable     = apperr.New(apperr.KindSlotUnavailable, "slot is no longer available")
)

// Repository contains all DB interactions needed by the service. Every
// method runs on the handle it is given: the pool for reads, a transaction
// for anything that has to be atomic with a ledger movement.
type Repository interface {
	// LockDoctor serializes bookings for one doctor until the transaction ends.
	LockDoctor(ctx context.Context, q db.DBTX, doctorID uuid.UUID) error

	Get(ctx context.Context, q db.DBTX, id uuid.UUID) (*Appointment, error)
	GetForUpdate(ctx context.Context, q db.DBTX, id uuid.UUID) (*Appointment, error)

	// For conflict checks
	ScheduledIntervals(ctx context.Context, q db.DBTX, doctorID uuid.UUID, from, to time.Time) ([]availability.Interval, error)

	// Creation and updates. Insert reports ErrSlotUnavailable when the
	// storage overlap constraint rejects the row.
	Insert(ctx context.Context, q db.DBTX, a *Appointment) error
	UpdateStatus(ctx context.Context, q db.DBTX, id uuid.UUID, from, to Status) (*Appointment, error)
	SetSessionToken(ctx context.Context, q db.DBTX, id uuid.UUID, token string) error
	// AttachSession stores sessionID only when the appointment has none yet.
	AttachSession(ctx context.Context, q db.DBTX, id uuid.UUID, sessionID string) (bool, error)
	Delete(ctx context.Context, q db.DBTX, id uuid.UUID) error

	ListForAccount(ctx context.Context, q db.DBTX, accountID uuid.UUID, limit, offset int) ([]Appointment, error)
	// CountUpcoming counts the doctor's SCHEDULED appointments starting after now.
	CountUpcoming(ctx context.Context, q db.DBTX, doctorID uuid.UUID, now time.Time) (int, error)

	// Session backfill worker
	ListMissingSession(ctx context.Context, q db.DBTX, now time.Time, limit int) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, q db.DBTX, ev eventlog.Event) error
}
