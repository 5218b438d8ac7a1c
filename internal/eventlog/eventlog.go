// Package eventlog records audit events in the same transaction as the change
// they describe.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/db"
)

const (
	AppointmentBooked    = "APPOINTMENT_BOOKED"
	AppointmentCancelled = "APPOINTMENT_CANCELLED"
	AppointmentCompleted = "APPOINTMENT_COMPLETED"
	AppointmentDeleted   = "APPOINTMENT_DELETED"
	SessionAttached      = "VIDEO_SESSION_ATTACHED"
	PayoutRequested      = "PAYOUT_REQUESTED"
	PayoutProcessed      = "PAYOUT_PROCESSED"
)

type Event struct {
	ID            int64
	Type          string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// New builds an event with a JSON payload. A payload that cannot be encoded
// is dropped rather than failing the surrounding transaction.
func New(typ string, appointmentID *uuid.UUID, payload map[string]any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = nil
	}
	return Event{
		Type:          typ,
		AppointmentID: appointmentID,
		Payload:       data,
	}
}

func Insert(ctx context.Context, q db.DBTX, ev Event) error {
	_, err := q.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.Type, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
