package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/appointment"
)

func bookAppointmentHandler(svc AppointmentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		if req.StartTime.IsZero() || req.EndTime.IsZero() {
			writeError(w, http.StatusBadRequest, "invalid_slot", "start_time and end_time are required")
			return
		}

		appt, err := svc.Book(r.Context(), appointment.BookRequest{
			PatientID:   caller(r.Context()).ID,
			DoctorID:    doctorID,
			Start:       req.StartTime,
			End:         req.EndTime,
			Description: req.Description,
		})
		if err != nil {
			renderError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, appt)
	}
}

func listAppointmentsHandler(svc AppointmentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := queryInt(w, r, "limit")
		if !ok {
			return
		}
		offset, ok := queryInt(w, r, "offset")
		if !ok {
			return
		}

		appts, err := svc.ListForAccount(r.Context(), caller(r.Context()).ID, limit, offset)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}
		if appts == nil {
			appts = []appointment.Appointment{}
		}

		writeJSON(w, http.StatusOK, appts)
	}
}

func getAppointmentHandler(svc AppointmentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), caller(r.Context()).ID, id)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func cancelAppointmentHandler(svc AppointmentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), caller(r.Context()).ID, id)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func completeAppointmentHandler(svc AppointmentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.Complete(r.Context(), caller(r.Context()).ID, id)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func deleteAppointmentHandler(svc AppointmentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), caller(r.Context()).ID, id); err != nil {
			renderError(w, r, logger, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func joinTokenHandler(svc AppointmentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		creds, err := svc.JoinToken(r.Context(), caller(r.Context()).ID, id)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, creds)
	}
}
