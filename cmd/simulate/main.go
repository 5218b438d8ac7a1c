package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/hackgods/telehealth-scheduling/internal/availability"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/logging"
)

// simulate races many patients for the same slot of one doctor against a
// running API and reports how the contention resolved. Exactly one booking
// per round should succeed; anything else exits non-zero.

type options struct {
	baseURL     string
	contenders  int
	rounds      int
	minCredits  int
	postgresDSN string
}

func loadOptions() (options, error) {
	_ = godotenv.Load()

	o := options{
		baseURL:     envOr("SIM_API_BASE_URL", "http://localhost:8080"),
		contenders:  envIntOr("SIM_WORKERS", 50),
		rounds:      envIntOr("SIM_ROUNDS", 3),
		minCredits:  envIntOr("SIM_MIN_CREDITS", 2),
		postgresDSN: os.Getenv("POSTGRES_DSN"),
	}
	switch {
	case o.postgresDSN == "":
		return o, errors.New("POSTGRES_DSN is required")
	case o.contenders <= 0:
		return o, errors.New("SIM_WORKERS must be positive")
	case o.rounds <= 0:
		return o, errors.New("SIM_ROUNDS must be positive")
	}
	return o, nil
}

// tally counts booking outcomes by HTTP result and keeps every latency.
type tally struct {
	created   atomic.Int64
	conflicts atomic.Int64
	failures  atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (t *tally) observe(d time.Duration, status int, err error) {
	switch {
	case err != nil:
		t.failures.Add(1)
	case status == http.StatusCreated:
		t.created.Add(1)
	case status == http.StatusConflict:
		t.conflicts.Add(1)
	default:
		t.failures.Add(1)
	}

	t.mu.Lock()
	t.latencies = append(t.latencies, d)
	t.mu.Unlock()
}

func (t *tally) attempts() int64 {
	return t.created.Load() + t.conflicts.Load() + t.failures.Load()
}

// percentile reads from a sorted copy; p is in [0, 100].
func (t *tally) percentile(p int) time.Duration {
	t.mu.Lock()
	sorted := slices.Clone(t.latencies)
	t.mu.Unlock()

	if len(sorted) == 0 {
		return 0
	}
	slices.Sort(sorted)
	return sorted[min(len(sorted)*p/100, len(sorted)-1)]
}

type simulator struct {
	opts     options
	http     *http.Client
	logger   *slog.Logger
	doctor   uuid.UUID
	patients []uuid.UUID
	tally    tally
}

func main() {
	logger := logging.New("simulate", os.Getenv("LOG_LEVEL"))

	opts, err := loadOptions()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := db.ConnectPostgres(ctx, opts.postgresDSN, nil)
	if err != nil {
		cancel()
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	doctor, patients, err := participants(ctx, pool, opts)
	cancel()
	pool.Close()
	if err != nil {
		logger.Error("load participants", "error", err)
		os.Exit(1)
	}
	logger.Info("participants loaded", "doctor_id", doctor, "patients", len(patients))

	sim := &simulator{
		opts:     opts,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		doctor:   doctor,
		patients: patients,
	}

	var winners int64
	for round := range opts.rounds {
		slot, err := sim.firstOpenSlot(context.Background())
		if err != nil {
			logger.Error("find slot", "round", round+1, "error", err)
			os.Exit(1)
		}
		n := sim.contend(context.Background(), slot)
		winners += n
		logger.Info("round finished", "round", round+1, "slot_start", slot.Start, "bookings", n)
	}

	sim.report(os.Stdout)

	if winners != int64(opts.rounds) {
		logger.Error("contention leaked", "bookings", winners, "rounds", opts.rounds)
		os.Exit(1)
	}
}

// participants picks one random verified doctor and up to opts.contenders
// patients that can afford a booking.
func participants(ctx context.Context, pool *pgxpool.Pool, opts options) (uuid.UUID, []uuid.UUID, error) {
	var doctor uuid.UUID
	err := pool.QueryRow(ctx, `
		SELECT id FROM accounts
		WHERE role = 'DOCTOR' AND verification_status = 'VERIFIED'
		ORDER BY random()
		LIMIT 1
	`).Scan(&doctor)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("pick doctor: %w", err)
	}

	rows, err := pool.Query(ctx, `
		SELECT id FROM accounts
		WHERE role = 'PATIENT' AND credits >= $1
		ORDER BY random()
		LIMIT $2
	`, opts.minCredits, opts.contenders)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("pick patients: %w", err)
	}
	patients, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("pick patients: %w", err)
	}
	if len(patients) == 0 {
		return uuid.Nil, nil, fmt.Errorf("no patient holds %d credits", opts.minCredits)
	}
	return doctor, patients, nil
}

// firstOpenSlot asks the API for the doctor's earliest slot that starts at
// least five minutes from now, so the booking cannot race the clock.
func (s *simulator) firstOpenSlot(ctx context.Context) (availability.Interval, error) {
	url := fmt.Sprintf("%s/doctors/%s/slots?days=14", s.opts.baseURL, s.doctor)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return availability.Interval{}, err
	}
	req.Header.Set("X-Account-ID", s.patients[0].String())

	resp, err := s.http.Do(req)
	if err != nil {
		return availability.Interval{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return availability.Interval{}, fmt.Errorf("GET slots: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var days []availability.DaySlots
	if err := json.NewDecoder(resp.Body).Decode(&days); err != nil {
		return availability.Interval{}, fmt.Errorf("decode slots: %w", err)
	}

	cutoff := time.Now().Add(5 * time.Minute)
	for _, d := range days {
		if i := slices.IndexFunc(d.Slots, func(iv availability.Interval) bool { return iv.Start.After(cutoff) }); i >= 0 {
			return d.Slots[i], nil
		}
	}
	return availability.Interval{}, fmt.Errorf("doctor %s has no open slot", s.doctor)
}

// contend sends one booking per patient for slot, all released together, and
// returns how many were created.
func (s *simulator) contend(ctx context.Context, slot availability.Interval) int64 {
	payload, _ := json.Marshal(map[string]any{
		"doctor_id":  s.doctor,
		"start_time": slot.Start,
		"end_time":   slot.End,
	})

	var (
		created atomic.Int64
		ready   sync.WaitGroup
		done    sync.WaitGroup
		gate    = make(chan struct{})
	)
	for _, patient := range s.patients {
		ready.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			ready.Done()
			<-gate
			if s.bookAs(ctx, patient, payload) {
				created.Add(1)
			}
		}()
	}
	ready.Wait()
	close(gate)
	done.Wait()

	return created.Load()
}

func (s *simulator) bookAs(ctx context.Context, patient uuid.UUID, payload []byte) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.baseURL+"/appointments", bytes.NewReader(payload))
	if err != nil {
		s.tally.observe(0, 0, err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Account-ID", patient.String())

	began := time.Now()
	resp, err := s.http.Do(req)
	elapsed := time.Since(began)
	if err != nil {
		s.logger.Debug("booking request failed", "patient_id", patient, "error", err)
		s.tally.observe(elapsed, 0, err)
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	s.tally.observe(elapsed, resp.StatusCode, nil)
	return resp.StatusCode == http.StatusCreated
}

func (s *simulator) report(w io.Writer) {
	t := &s.tally
	n := t.attempts()
	fmt.Fprintf(w, "booking contention: %d rounds x %d patients\n", s.opts.rounds, len(s.patients))
	if n == 0 {
		return
	}
	share := func(v int64) float64 { return float64(v) / float64(n) * 100 }
	fmt.Fprintf(w, "  attempts   %d\n", n)
	fmt.Fprintf(w, "  created    %d (%.1f%%)\n", t.created.Load(), share(t.created.Load()))
	fmt.Fprintf(w, "  conflicts  %d (%.1f%%)\n", t.conflicts.Load(), share(t.conflicts.Load()))
	fmt.Fprintf(w, "  failures   %d (%.1f%%)\n", t.failures.Load(), share(t.failures.Load()))
	fmt.Fprintf(w, "  latency    p50=%s p95=%s p99=%s max=%s\n",
		t.percentile(50).Round(time.Millisecond),
		t.percentile(95).Round(time.Millisecond),
		t.percentile(99).Round(time.Millisecond),
		t.percentile(100).Round(time.Millisecond))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}
