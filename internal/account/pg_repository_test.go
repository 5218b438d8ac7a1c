package account

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountRowColumns = []string{"id", "role", "verification_status", "credits", "name", "email", "specialty", "created_at", "updated_at"}

func TestPgRepositoryGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now()
	verified := "VERIFIED"
	name := "Dr. Ada"
	mock.ExpectQuery("SELECT (.+) FROM accounts").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(accountRowColumns).
			AddRow(id, "DOCTOR", &verified, int64(4), &name, nil, nil, now, now))

	a, err := NewPgRepository(mock).Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, RoleDoctor, a.Role)
	assert.True(t, a.IsVerifiedDoctor())
	assert.Equal(t, int64(4), a.Credits)
	assert.Equal(t, "Dr. Ada", *a.Name)
	assert.Nil(t, a.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM accounts").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(accountRowColumns))

	_, err = NewPgRepository(mock).Get(context.Background(), id)
	require.ErrorIs(t, err, ErrAccountNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryAssignRoleAlreadySet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery("UPDATE accounts").
		WithArgs(id, "PATIENT", (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil)).
		WillReturnRows(pgxmock.NewRows(accountRowColumns))
	mock.ExpectQuery("SELECT (.+) FROM accounts").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(accountRowColumns).
			AddRow(id, "DOCTOR", nil, int64(0), nil, nil, nil, now, now))

	_, err = NewPgRepository(mock).AssignRole(context.Background(), id, RolePatient, nil, Profile{})
	require.ErrorIs(t, err, ErrRoleAlreadySet)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryEnsure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now()
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT (.+) FROM accounts").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(accountRowColumns).
			AddRow(id, "UNASSIGNED", nil, int64(0), nil, nil, nil, now, now))

	a, err := NewPgRepository(mock).Ensure(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, RoleUnassigned, a.Role)
	assert.Nil(t, a.Verification)
	require.NoError(t, mock.ExpectationsWereMet())
}
