package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hackgods/telehealth-scheduling/internal/account"
	"github.com/hackgods/telehealth-scheduling/internal/availability"
	"github.com/hackgods/telehealth-scheduling/internal/ledger"
)

func currentAccountHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, caller(r.Context()))
	}
}

func chooseRoleHandler(svc AccountService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChooseRoleRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		acct, err := svc.ChooseRole(r.Context(), caller(r.Context()).ID,
			account.Role(strings.ToUpper(req.Role)),
			account.Profile{Name: req.Name, Email: req.Email, Specialty: req.Specialty},
		)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, acct)
	}
}

func getWindowHandler(svc AvailabilityService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, err := svc.Window(r.Context(), caller(r.Context()).ID)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, windowResponse(win))
	}
}

func setWindowHandler(svc AvailabilityService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WindowRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		win, err := svc.SetWindow(r.Context(), caller(r.Context()).ID, availability.Window{
			StartMinute: req.StartMinute,
			EndMinute:   req.EndMinute,
		})
		if err != nil {
			renderError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, windowResponse(win))
	}
}

func windowResponse(w availability.Window) WindowResponse {
	return WindowResponse{StartMinute: w.StartMinute, EndMinute: w.EndMinute, Display: w.String()}
}

func doctorSlotsHandler(svc AvailabilityService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		days, ok := queryInt(w, r, "days")
		if !ok {
			return
		}

		slots, err := svc.ComputeSlots(r.Context(), doctorID, availability.Query{Days: days, Now: time.Now()})
		if err != nil {
			renderError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, slots)
	}
}

func purchaseCreditsHandler(svc AccountService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreditsRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		acct, err := svc.PurchaseCredits(r.Context(), caller(r.Context()).ID, req.Credits)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, acct)
	}
}

func creditHistoryHandler(svc AccountService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := queryInt(w, r, "limit")
		if !ok {
			return
		}

		txs, err := svc.History(r.Context(), caller(r.Context()).ID, limit)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}
		if txs == nil {
			txs = []ledger.Transaction{}
		}

		writeJSON(w, http.StatusOK, txs)
	}
}

func pendingDoctorsHandler(svc AccountService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := queryInt(w, r, "limit")
		if !ok {
			return
		}

		doctors, err := svc.ListPendingDoctors(r.Context(), caller(r.Context()).ID, limit)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}
		if doctors == nil {
			doctors = []account.Account{}
		}

		writeJSON(w, http.StatusOK, doctors)
	}
}

func setVerificationHandler(svc AccountService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req VerificationRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		acct, err := svc.SetVerification(r.Context(), caller(r.Context()).ID, doctorID,
			account.VerificationStatus(strings.ToUpper(req.Status)))
		if err != nil {
			renderError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, acct)
	}
}

func adjustCreditsHandler(svc AccountService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req CreditsRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		acct, err := svc.AdjustCredits(r.Context(), caller(r.Context()).ID, id, req.Credits)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, acct)
	}
}

func reconcileHandler(svc AccountService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		rec, err := svc.Reconcile(r.Context(), caller(r.Context()).ID, id)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, rec)
	}
}
