package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/telehealth-scheduling/internal/availability"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/eventlog"
)

type PgRepository struct{}

func NewPgRepository() *PgRepository {
	return &PgRepository{}
}

const appointmentColumns = `id, patient_id, doctor_id, start_time, end_time, status, description,
	video_session_id, video_session_token, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Description,
		&a.VideoSessionID,
		&a.VideoSessionToken,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) LockDoctor(ctx context.Context, q db.DBTX, doctorID uuid.UUID) error {
	return db.LockKey(ctx, q, "doctor", doctorID)
}

func (r *PgRepository) Get(ctx context.Context, q db.DBTX, id uuid.UUID) (*Appointment, error) {
	row := q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetForUpdate(ctx context.Context, q db.DBTX, id uuid.UUID) (*Appointment, error) {
	row := q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ScheduledIntervals(ctx context.Context, q db.DBTX, doctorID uuid.UUID, from, to time.Time) ([]availability.Interval, error) {
	rows, err := q.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE doctor_id = $1
		  AND status = 'SCHEDULED'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query scheduled intervals: %w", err)
	}
	defer rows.Close()

	var result []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		result = append(result, iv)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Insert(ctx context.Context, q db.DBTX, a *Appointment) error {
	row := q.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, start_time, end_time, status, description,
		                          video_session_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING created_at, updated_at
	`, a.ID, a.PatientID, a.DoctorID, a.StartTime, a.EndTime, string(a.Status), a.Description, a.VideoSessionID)

	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		if db.IsExclusionViolation(err) {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, q db.DBTX, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, string(to), string(from))

	return scanAppointment(row)
}

func (r *PgRepository) SetSessionToken(ctx context.Context, q db.DBTX, id uuid.UUID, token string) error {
	tag, err := q.Exec(ctx, `
		UPDATE appointments
		SET video_session_token = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, token)
	if err != nil {
		return fmt.Errorf("store session token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) AttachSession(ctx context.Context, q db.DBTX, id uuid.UUID, sessionID string) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE appointments
		SET video_session_id = $2,
		    updated_at = now()
		WHERE id = $1
		  AND video_session_id IS NULL
	`, id, sessionID)
	if err != nil {
		return false, fmt.Errorf("attach video session: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) Delete(ctx context.Context, q db.DBTX, id uuid.UUID) error {
	tag, err := q.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListForAccount(ctx context.Context, q db.DBTX, accountID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1 OR doctor_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CountUpcoming(ctx context.Context, q db.DBTX, doctorID uuid.UUID, now time.Time) (int, error) {
	var n int
	err := q.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE doctor_id = $1
		  AND status = 'SCHEDULED'
		  AND start_time > $2
	`, doctorID, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count upcoming appointments: %w", err)
	}
	return n, nil
}

func (r *PgRepository) ListMissingSession(ctx context.Context, q db.DBTX, now time.Time, limit int) ([]Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'SCHEDULED'
		  AND video_session_id IS NULL
		  AND end_time > $1
		ORDER BY start_time
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list appointments without session: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, q db.DBTX, ev eventlog.Event) error {
	return eventlog.Insert(ctx, q, ev)
}
