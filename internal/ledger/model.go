package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/apperr"
)

type Type string

const (
	TypeCreditPurchase       Type = "CREDIT_PURCHASE"
	TypeAppointmentDeduction Type = "APPOINTMENT_DEDUCTION"
	TypeAppointmentCredit    Type = "APPOINTMENT_CREDIT"
	TypeAdminAdjustment      Type = "ADMIN_ADJUSTMENT"
)

// Counterpart is the type recorded on the receiving side of a transfer.
func (t Type) Counterpart() Type {
	switch t {
	case TypeAppointmentDeduction:
		return TypeAppointmentCredit
	case TypeAppointmentCredit:
		return TypeAppointmentDeduction
	}
	return t
}

var (
	ErrInsufficientCredits = apperr.New(apperr.KindInsufficientCredits, "insufficient credits")
	ErrAccountNotFound     = apperr.New(apperr.KindNotFound, "account not found")
	ErrInvalidAmount       = apperr.New(apperr.KindValidation, "amount must be positive")
)

// Transaction is one append-only ledger row. Amount is negative for debits.
type Transaction struct {
	ID            uuid.UUID  `json:"id"`
	AccountID     uuid.UUID  `json:"account_id"`
	Amount        int64      `json:"amount"`
	Type          Type       `json:"type"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	PayoutID      *uuid.UUID `json:"payout_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Ref links ledger rows to the entity that caused them.
type Ref struct {
	AppointmentID *uuid.UUID
	PayoutID      *uuid.UUID
}

type Reconciliation struct {
	AccountID uuid.UUID `json:"account_id"`
	Balance   int64     `json:"balance"`
	LogSum    int64     `json:"log_sum"`
	OK        bool      `json:"ok"`
}
