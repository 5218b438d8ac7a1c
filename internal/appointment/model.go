package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/availability"
)

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

type Appointment struct {
	ID                uuid.UUID `json:"id"`
	PatientID         uuid.UUID `json:"patient_id"`
	DoctorID          uuid.UUID `json:"doctor_id"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	Status            Status    `json:"status"`
	Description       *string   `json:"description,omitempty"`
	VideoSessionID    *string   `json:"video_session_id,omitempty"`
	VideoSessionToken *string   `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (a *Appointment) Interval() availability.Interval {
	return availability.Interval{Start: a.StartTime, End: a.EndTime}
}

func (a *Appointment) IsParticipant(accountID uuid.UUID) bool {
	return a.PatientID == accountID || a.DoctorID == accountID
}

type BookRequest struct {
	PatientID   uuid.UUID
	DoctorID    uuid.UUID
	Start       time.Time
	End         time.Time
	Description string
}

// JoinCredentials let one participant join the appointment's video session.
type JoinCredentials struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
