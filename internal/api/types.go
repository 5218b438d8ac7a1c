package api

import (
	"time"
)

type ChooseRoleRequest struct {
	Role      string  `json:"role"`
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Specialty *string `json:"specialty,omitempty"`
}

type WindowRequest struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

type WindowResponse struct {
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	Display     string `json:"display"`
}

type BookAppointmentRequest struct {
	DoctorID    string    `json:"doctor_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Description string    `json:"description,omitempty"`
}

type CreditsRequest struct {
	Credits int64 `json:"credits"`
}

type VerificationRequest struct {
	Status string `json:"status"`
}

type PayoutRequest struct {
	Credits     int64  `json:"credits"`
	PayPalEmail string `json:"paypal_email"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
