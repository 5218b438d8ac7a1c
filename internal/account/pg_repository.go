package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/telehealth-scheduling/internal/db"
)

type PgRepository struct {
	pool db.DBTX
}

func NewPgRepository(pool db.DBTX) *PgRepository {
	return &PgRepository{pool: pool}
}

const accountColumns = `id, role, verification_status, credits, name, email, specialty, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var status *string

	err := row.Scan(
		&a.ID,
		&a.Role,
		&status,
		&a.Credits,
		&a.Name,
		&a.Email,
		&a.Specialty,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if status != nil {
		vs := VerificationStatus(*status)
		a.Verification = &vs
	}
	return &a, nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id)
	return scanAccount(row)
}

func (r *PgRepository) Ensure(ctx context.Context, id uuid.UUID) (*Account, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (id, role, credits, created_at, updated_at)
		VALUES ($1, 'UNASSIGNED', 0, now(), now())
		ON CONFLICT (id) DO NOTHING
	`, id)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *PgRepository) AssignRole(ctx context.Context, id uuid.UUID, role Role, status *VerificationStatus, p Profile) (*Account, error) {
	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE accounts
		SET role = $2,
		    verification_status = $3,
		    name = COALESCE($4, name),
		    email = COALESCE($5, email),
		    specialty = COALESCE($6, specialty),
		    updated_at = now()
		WHERE id = $1
		  AND role = 'UNASSIGNED'
		RETURNING `+accountColumns, id, string(role), statusArg, p.Name, p.Email, p.Specialty)

	a, err := scanAccount(row)
	if errors.Is(err, ErrAccountNotFound) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrRoleAlreadySet
	}
	return a, err
}

func (r *PgRepository) SetVerification(ctx context.Context, id uuid.UUID, status VerificationStatus) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE accounts
		SET verification_status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND role = 'DOCTOR'
		RETURNING `+accountColumns, id, string(status))

	a, err := scanAccount(row)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrDoctorNotFound
	}
	return a, err
}

func (r *PgRepository) ListPendingDoctors(ctx context.Context, limit int) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE role = 'DOCTOR'
		  AND verification_status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Account
	for rows.Next() {
		a, err := scanAccount(rows)
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
