package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/telehealth-scheduling/internal/db"
)

type WindowStore interface {
	// GetWindow reports ok=false when the provider never set a window.
	GetWindow(ctx context.Context, doctorID uuid.UUID) (w Window, ok bool, err error)
	UpsertWindow(ctx context.Context, doctorID uuid.UUID, w Window) (Window, error)
}

// WindowLookup resolves the daily window a doctor works in.
type WindowLookup struct {
	store WindowStore
}

func NewWindowLookup(store WindowStore) *WindowLookup {
	return &WindowLookup{store: store}
}

// Window returns the doctor's configured window or DefaultWindow.
func (l *WindowLookup) Window(ctx context.Context, doctorID uuid.UUID) (Window, error) {
	w, ok, err := l.store.GetWindow(ctx, doctorID)
	if err != nil {
		return Window{}, err
	}
	if !ok {
		return DefaultWindow, nil
	}
	return w, nil
}

type PgWindowRepository struct {
	pool db.DBTX
}

func NewPgWindowRepository(pool db.DBTX) *PgWindowRepository {
	return &PgWindowRepository{pool: pool}
}

func (r *PgWindowRepository) GetWindow(ctx context.Context, doctorID uuid.UUID) (Window, bool, error) {
	var w Window
	err := r.pool.QueryRow(ctx, `
		SELECT start_minute, end_minute
		FROM availability_windows
		WHERE doctor_id = $1
		  AND status = 'AVAILABLE'
	`, doctorID).Scan(&w.StartMinute, &w.EndMinute)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Window{}, false, nil
		}
		return Window{}, false, fmt.Errorf("get availability window: %w", err)
	}
	return w, true, nil
}

func (r *PgWindowRepository) UpsertWindow(ctx context.Context, doctorID uuid.UUID, w Window) (Window, error) {
	var out Window
	err := r.pool.QueryRow(ctx, `
		INSERT INTO availability_windows (doctor_id, start_minute, end_minute, status, updated_at)
		VALUES ($1, $2, $3, 'AVAILABLE', now())
		ON CONFLICT (doctor_id) DO UPDATE
		SET start_minute = EXCLUDED.start_minute,
		    end_minute = EXCLUDED.end_minute,
		    status = 'AVAILABLE',
		    updated_at = now()
		RETURNING start_minute, end_minute
	`, doctorID, w.StartMinute, w.EndMinute).Scan(&out.StartMinute, &out.EndMinute)
	if err != nil {
		return Window{}, fmt.Errorf("upsert availability window: %w", err)
	}
	return out, nil
}
