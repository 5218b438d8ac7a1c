package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgStoreDebitSucceeds(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("UPDATE accounts").
		WithArgs(id, int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"credits"}).AddRow(int64(3)))

	balance, err := NewPgStore().Debit(context.Background(), mock, id, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreDebitInsufficient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("UPDATE accounts").
		WithArgs(id, int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"credits"}))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	_, err = NewPgStore().Debit(context.Background(), mock, id, 2)
	require.ErrorIs(t, err, ErrInsufficientCredits)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreDebitUnknownAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("UPDATE accounts").
		WithArgs(id, int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"credits"}))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = NewPgStore().Debit(context.Background(), mock, id, 2)
	require.ErrorIs(t, err, ErrAccountNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreAppend(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tx := Transaction{
		ID:        uuid.New(),
		AccountID: uuid.New(),
		Amount:    -2,
		Type:      TypeAppointmentDeduction,
		CreatedAt: time.Now(),
	}
	mock.ExpectExec("INSERT INTO credit_transactions").
		WithArgs(tx.ID, tx.AccountID, int64(-2), "APPOINTMENT_DEDUCTION", tx.AppointmentID, tx.PayoutID, tx.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewPgStore().Append(context.Background(), mock, tx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	account := uuid.New()
	appt := uuid.New()
	now := time.Now()
	mock.ExpectQuery("SELECT id, account_id, amount, type").
		WithArgs(account, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "account_id", "amount", "type", "appointment_id", "payout_id", "created_at"}).
			AddRow(uuid.New(), account, int64(-2), "APPOINTMENT_DEDUCTION", &appt, nil, now).
			AddRow(uuid.New(), account, int64(10), "CREDIT_PURCHASE", nil, nil, now.Add(-time.Hour)))

	rows, err := NewPgStore().List(context.Background(), mock, account, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, TypeAppointmentDeduction, rows[0].Type)
	assert.Equal(t, appt, *rows[0].AppointmentID)
	assert.Nil(t, rows[1].AppointmentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreLock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT id FROM accounts WHERE id = \\$1 FOR UPDATE").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectQuery("SELECT id FROM accounts WHERE id = \\$1 FOR UPDATE").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	require.NoError(t, NewPgStore().Lock(context.Background(), mock, id))
	require.ErrorIs(t, NewPgStore().Lock(context.Background(), mock, id), ErrAccountNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
