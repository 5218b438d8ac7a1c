package api

import (
	"log/slog"
	"net/http"

	"github.com/hackgods/telehealth-scheduling/internal/payout"
)

func requestPayoutHandler(svc PayoutService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PayoutRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		p, err := svc.Request(r.Context(), caller(r.Context()).ID, req.Credits, req.PayPalEmail)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, p)
	}
}

func pendingPayoutsHandler(svc PayoutService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := queryInt(w, r, "limit")
		if !ok {
			return
		}

		payouts, err := svc.ListPending(r.Context(), caller(r.Context()).ID, limit)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}
		if payouts == nil {
			payouts = []payout.Payout{}
		}

		writeJSON(w, http.StatusOK, payouts)
	}
}

func approvePayoutHandler(svc PayoutService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		p, err := svc.Approve(r.Context(), id, caller(r.Context()).ID)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}
