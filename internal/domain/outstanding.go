package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OutstandingStatus string

const (
	OutstandingStatusPending OutstandingStatus = "pending"
	OutstandingStatusPartial OutstandingStatus = "partial"
	OutstandingStatusOverdue OutstandingStatus = "overdue"
	OutstandingStatusCleared OutstandingStatus = "cleared"
)

// ParseOutstandingStatus accepts the lower-case wire form; an empty string yields "" and no error.
func ParseOutstandingStatus(s string) (OutstandingStatus, error) {
	switch OutstandingStatus(s) {
	case "":
		return "", nil
	case OutstandingStatusPending, OutstandingStatusPartial, OutstandingStatusOverdue, OutstandingStatusCleared:
		return OutstandingStatus(s), nil
	}
	return "", NewError(KindValidation, "unknown status %q", s)
}

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodBank   PaymentMethod = "bank"
	PaymentMethodUPI    PaymentMethod = "upi"
	PaymentMethodCheque PaymentMethod = "cheque"
)

var paymentMethods = map[PaymentMethod]struct{}{
	PaymentMethodCash:   {},
	PaymentMethodBank:   {},
	PaymentMethodUPI:    {},
	PaymentMethodCheque: {},
}

// Valid reports whether m is one of the recognized settlement methods.
func (m PaymentMethod) Valid() bool {
	_, ok := paymentMethods[m]
	return ok
}

// OutstandingRecord is one debt owed by a retailer.
// PendingAmount and Status are derived; see Refresh.
type OutstandingRecord struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	OrderID       string            `json:"order_id,omitempty"`
	InvoiceNumber string            `json:"invoice_number,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	ClearedAmount decimal.Decimal   `json:"cleared_amount"`
	PendingAmount decimal.Decimal   `json:"pending_amount"`
	DueDate       *time.Time        `json:"due_date,omitempty"`
	Status        OutstandingStatus `json:"status"`
	Notes         string            `json:"notes"`
	Version       int32             `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Refresh re-derives PendingAmount and Status from Amount, ClearedAmount and DueDate.
func (r *OutstandingRecord) Refresh(now time.Time) {
	r.PendingAmount = r.Amount.Sub(r.ClearedAmount)
	r.Status = EvaluateStatus(r.Amount, r.ClearedAmount, r.DueDate, now)
}

// PaymentHistoryEntry is an immutable settlement event against an OutstandingRecord.
type PaymentHistoryEntry struct {
	ID            string          `json:"id"`
	OutstandingID string          `json:"outstanding_id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Description   string          `json:"description"`
	PaymentDate   time.Time       `json:"payment_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

type OutstandingFilter struct {
	UserID string
	Status OutstandingStatus
}

type HistoryFilter struct {
	OutstandingID string
	UserID        string
	// Type is accepted but never narrows the result; settlements carry no type.
	Type string
}

type OutstandingSummary struct {
	TotalAmount  decimal.Decimal             `json:"total_amount"`
	TotalPending decimal.Decimal             `json:"total_pending"`
	TotalCleared decimal.Decimal             `json:"total_cleared"`
	TotalCount   int32                       `json:"total_count"`
	StatusCount  map[OutstandingStatus]int32 `json:"status_count"`
}
