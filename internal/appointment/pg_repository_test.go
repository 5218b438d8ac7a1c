package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgRepositoryInsertMapsExclusionViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	start := time.Date(2030, time.March, 1, 10, 0, 0, 0, time.UTC)
	a := &Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		Status:    StatusScheduled,
	}
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(a.ID, a.PatientID, a.DoctorID, a.StartTime, a.EndTime, "SCHEDULED", a.Description, a.VideoSessionID).
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"})

	err = NewPgRepository().Insert(context.Background(), mock, a)
	require.ErrorIs(t, err, ErrSlotUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryScheduledIntervals(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctor := uuid.New()
	from := time.Date(2030, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 4)
	busyStart := from.Add(10 * time.Hour)

	mock.ExpectQuery("SELECT start_time, end_time FROM appointments").
		WithArgs(doctor, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"start_time", "end_time"}).
			AddRow(busyStart, busyStart.Add(30*time.Minute)))

	busy, err := NewPgRepository().ScheduledIntervals(context.Background(), mock, doctor, from, to)
	require.NoError(t, err)
	require.Len(t, busy, 1)
	assert.Equal(t, busyStart, busy[0].Start)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryAttachSessionOnlyOnce(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(id, "sess-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE appointments").
		WithArgs(id, "sess-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewPgRepository()
	ok, err := repo.AttachSession(context.Background(), mock, id, "sess-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AttachSession(context.Background(), mock, id, "sess-2")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryUpdateStatusWrongState(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, "CANCELLED", "SCHEDULED").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = NewPgRepository().UpdateStatus(context.Background(), mock, id, StatusScheduled, StatusCancelled)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryCountUpcoming(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctor := uuid.New()
	now := time.Date(2030, time.March, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM appointments WHERE doctor_id = \\$1 AND status = 'SCHEDULED' AND start_time > \\$2").
		WithArgs(doctor, now).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := NewPgRepository().CountUpcoming(context.Background(), mock, doctor, now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
