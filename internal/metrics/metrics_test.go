package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hackgods/telehealth-scheduling/internal/apperr"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBooking("ok", 0.02)
	m.ObserveBooking("slot_unavailable", 0.01)
	m.ObserveBooking("ok", 0.03)
	m.ObserveSessionCreate(false)
	m.ObserveJoinToken("ok")
	m.ObservePayout("insufficient_credits")
	m.IncTxRetry()

	if got := testutil.ToFloat64(m.bookingsTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("expected 2 ok bookings, got %v", got)
	}
	if got := testutil.ToFloat64(m.sessionsTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 failed session, got %v", got)
	}
	if got := testutil.ToFloat64(m.txRetriesTotal); got != 1 {
		t.Fatalf("expected 1 retry, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveBooking("ok", 1)
	m.ObserveSessionCreate(true)
	m.ObserveJoinToken("ok")
	m.ObservePayout("ok")
	m.IncTxRetry()
}

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		"ok":               nil,
		"slot_unavailable": apperr.New(apperr.KindSlotUnavailable, "taken"),
		"error":            errors.New("boom"),
	}
	for want, err := range cases {
		if got := Outcome(err); got != want {
			t.Errorf("Outcome(%v) = %q, want %q", err, got, want)
		}
	}
}
