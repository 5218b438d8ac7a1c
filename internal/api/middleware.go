package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/account"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	accountKey
)

const (
	// AccountHeader carries the caller's account id as issued by the identity
	// provider.
	AccountHeader   = "X-Account-ID"
	RequestIDHeader = "X-Request-ID"
)

// withRequestID propagates an inbound X-Request-ID or mints one, and echoes
// it on the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			began := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(began).Milliseconds(),
				"request_id", requestIDFrom(r.Context()),
			)
		})
	}
}

// requireIdentity resolves the caller from AccountHeader, creating the
// account on first sight, and stores it in the request context.
func requireIdentity(accounts AccountService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(AccountHeader)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "missing "+AccountHeader+" header")
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthenticated", AccountHeader+" must be a valid UUID")
				return
			}

			acct, err := accounts.Current(r.Context(), id)
			if err != nil {
				renderError(w, r, logger, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey, acct)))
		})
	}
}

// caller returns the account resolved by requireIdentity.
func caller(ctx context.Context) *account.Account {
	acct, _ := ctx.Value(accountKey).(*account.Account)
	return acct
}
