package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/hackgods/telehealth-scheduling/internal/availability"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/ledger"
	"github.com/hackgods/telehealth-scheduling/internal/logging"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

// windows are the daily availability windows handed out to seeded doctors.
var windows = []availability.Window{
	{StartMinute: 8 * 60, EndMinute: 12 * 60},
	{StartMinute: 9 * 60, EndMinute: 17 * 60},
	{StartMinute: 13 * 60, EndMinute: 20 * 60},
	{StartMinute: 6 * 60, EndMinute: 14 * 60},
}

func main() {
	_ = godotenv.Load()
	logger := logging.New("seed", os.Getenv("LOG_LEVEL"))
	logger.Info("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, logger)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	_ = gofakeit.Seed(time.Now().UnixNano())

	doctors := envInt("SEED_DOCTORS", 20)
	patients := envInt("SEED_PATIENTS", 500)
	credits := int64(envInt("SEED_PATIENT_CREDITS", 20))

	s := &seeder{pool: pool, ledger: ledger.New(ledger.NewPgStore()), logger: logger}

	if err := s.admin(context.Background()); err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	if err := s.doctors(context.Background(), doctors); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := s.patients(context.Background(), patients, credits); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	logger.Info("seed complete")
}

type seeder struct {
	pool   *pgxpool.Pool
	ledger *ledger.Ledger
	logger *slog.Logger
}

func (s *seeder) admin(ctx context.Context) error {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, role, credits, name, email, created_at, updated_at)
		VALUES ($1, 'ADMIN', 0, $2, $3, now(), now())
	`, id, gofakeit.Name(), gofakeit.Email())
	if err != nil {
		return err
	}
	s.logger.Info("admin seeded", "account_id", id)
	return nil
}

func (s *seeder) doctors(ctx context.Context, count int) error {
	s.logger.Info("seeding doctors", "count", count)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	windowRepo := availability.NewPgWindowRepository(tx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO accounts (id, role, verification_status, credits, name, email, specialty, created_at, updated_at)
			VALUES ($1, 'DOCTOR', 'VERIFIED', 0, $2, $3, $4, now(), now())
		`, id, "Dr. "+gofakeit.Name(), gofakeit.Email(), spec)
		if err != nil {
			return err
		}

		w := windows[gofakeit.Number(0, len(windows)-1)]
		if _, err := windowRepo.UpsertWindow(ctx, id, w); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.logger.Info("doctors seeded", "count", count)
	return nil
}

func (s *seeder) patients(ctx context.Context, count int, credits int64) error {
	s.logger.Info("seeding patients", "count", count, "credits", credits)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				id := uuid.New()

				_, err := tx.Exec(ctx, `
					INSERT INTO accounts (id, role, credits, name, email, created_at, updated_at)
					VALUES ($1, 'PATIENT', 0, $2, $3, now(), now())
				`, id, gofakeit.Name(), gofakeit.Email())
				if err != nil {
					return err
				}

				if credits > 0 {
					if _, err := s.ledger.Grant(ctx, tx, id, credits, ledger.TypeCreditPurchase, ledger.Ref{}); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		s.logger.Info("patients seeded", "done", end, "total", count)
	}

	return nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
