package payout

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

var payoutRowColumns = []string{
	"id", "doctor_id", "credits", "amount_cents", "platform_fee_cents", "net_amount_cents",
	"paypal_email", "status", "created_at", "processed_at", "processed_by",
}

func TestPgRepositoryGetForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, doctor := uuid.New(), uuid.New()
	created := time.Date(2030, time.March, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM payouts WHERE id = \\$1 FOR UPDATE").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(payoutRowColumns).
			AddRow(id, doctor, int64(3), int64(3000), int64(600), int64(2400),
				"doc@example.com", "PROCESSING", created, (*time.Time)(nil), (*uuid.UUID)(nil)))

	p, err := NewPgRepository().GetForUpdate(context.Background(), mock, id)
	require.NoError(t, err)
	assert.Equal(t, doctor, p.DoctorID)
	assert.Equal(t, StatusProcessing, p.Status)
	assert.Equal(t, int64(2400), p.NetAmountCents)
	assert.Nil(t, p.ProcessedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryGetForUpdateNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM payouts").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(payoutRowColumns))

	_, err = NewPgRepository().GetForUpdate(context.Background(), mock, id)
	require.ErrorIs(t, err, ErrPayoutNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryInsertMapsUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := &Payout{
		ID:          uuid.New(),
		DoctorID:    uuid.New(),
		Credits:     2,
		PayPalEmail: "doc@example.com",
		Status:      StatusProcessing,
	}
	p.amounts()

	mock.ExpectQuery("INSERT INTO payouts").
		WithArgs(p.ID, p.DoctorID, p.Credits, p.AmountCents, p.PlatformFeeCents, p.NetAmountCents,
			p.PayPalEmail, "PROCESSING").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "payouts_one_processing"})

	err = NewPgRepository().Insert(context.Background(), mock, p)
	require.ErrorIs(t, err, ErrPayoutPending)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryMarkProcessedWrongState(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, admin := uuid.New(), uuid.New()
	at := time.Date(2030, time.March, 2, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("UPDATE payouts").
		WithArgs(id, admin, at).
		WillReturnRows(pgxmock.NewRows(payoutRowColumns))

	_, err = NewPgRepository().MarkProcessed(context.Background(), mock, id, admin, at)
	require.ErrorIs(t, err, ErrPayoutNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
