package service

import (
	"context"

	"outstanding-ledger-backend/internal/domain"
)

// CreateOutstandingInput carries raw admin form values; Amount and DueDate are
// parsed by the service.
type CreateOutstandingInput struct {
	UserID        string
	OrderID       string
	InvoiceNumber string
	Amount        string
	DueDate       string
	Notes         string
}

// UpdateOutstandingInput holds only the fields being changed. An empty DueDate
// clears the due date. Amount/PendingAmount are corrections and are re-validated
// against the cleared amount.
type UpdateOutstandingInput struct {
	OrderID       *string
	InvoiceNumber *string
	Notes         *string
	DueDate       *string
	Amount        *string
	PendingAmount *string
}

type ApplyPaymentInput struct {
	OutstandingID string
	Amount        string
	Method        string
	TransactionID string
	Description   string
	PaymentDate   string
}

type ListOutstandingInput struct {
	Status string
	UserID string
}

type HistoryInput struct {
	OutstandingID string
	UserID        string
	Type          string
}

// OutstandingService is the only entry point callers use to read or change the ledger.
type OutstandingService interface {
	Create(ctx context.Context, in CreateOutstandingInput) (*domain.OutstandingRecord, error)
	Get(ctx context.Context, id string) (*domain.OutstandingRecord, error)
	Update(ctx context.Context, id string, in UpdateOutstandingInput) (*domain.OutstandingRecord, error)
	Delete(ctx context.Context, id string, cascade bool) error
	List(ctx context.Context, in ListOutstandingInput) ([]domain.OutstandingRecord, error)
	GetHistory(ctx context.Context, in HistoryInput) ([]domain.PaymentHistoryEntry, error)
	ApplyPayment(ctx context.Context, in ApplyPaymentInput) (*domain.OutstandingRecord, *domain.PaymentHistoryEntry, error)
	DeleteHistoryEntry(ctx context.Context, entryID string) (*domain.OutstandingRecord, error)
	GetSummary(ctx context.Context, in ListOutstandingInput) (*domain.OutstandingSummary, error)
	// RefreshStatuses rewrites cached status labels that have drifted from the live value.
	RefreshStatuses(ctx context.Context) (int, error)
}
