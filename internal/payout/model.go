package payout

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusProcessed  Status = "PROCESSED"
)

// Reporting amounts only; the money transfer itself happens outside the
// system.
const (
	CreditValueCents     int64 = 1000
	PlatformFeePerCredit int64 = 200
)

type Payout struct {
	ID               uuid.UUID  `json:"id"`
	DoctorID         uuid.UUID  `json:"doctor_id"`
	Credits          int64      `json:"credits"`
	AmountCents      int64      `json:"amount_cents"`
	PlatformFeeCents int64      `json:"platform_fee_cents"`
	NetAmountCents   int64      `json:"net_amount_cents"`
	PayPalEmail      string     `json:"paypal_email"`
	Status           Status     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
	ProcessedBy      *uuid.UUID `json:"processed_by,omitempty"`
}

// amounts fills the reporting fields for a number of credits.
func (p *Payout) amounts() {
	p.AmountCents = p.Credits * CreditValueCents
	p.PlatformFeeCents = p.Credits * PlatformFeePerCredit
	p.NetAmountCents = p.AmountCents - p.PlatformFeeCents
}
