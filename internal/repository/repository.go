package repository

import (
	"context"
	"errors"

	"outstanding-ledger-backend/internal/domain"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConcurrentUpdate marks a unit of work that lost a race and may be retried.
	ErrConcurrentUpdate = errors.New("concurrent update")
)

// RecordTx is an atomic unit of work scoped to one outstanding record.
// Writes become visible only when the enclosing WithinRecord callback returns nil.
// Save persists every mutable column, bumps Version and refreshes UpdatedAt on rec.
// DeleteRecord removes the record together with all of its history.
type RecordTx interface {
	Record() *domain.OutstandingRecord
	History(ctx context.Context) ([]domain.PaymentHistoryEntry, error)
	Save(ctx context.Context, rec *domain.OutstandingRecord) error
	AppendHistory(ctx context.Context, entry *domain.PaymentHistoryEntry) error
	DeleteHistory(ctx context.Context, entryID string) error
	DeleteRecord(ctx context.Context) error
}

type OutstandingRepository interface {
	Create(ctx context.Context, rec *domain.OutstandingRecord) error
	GetByID(ctx context.Context, id string) (*domain.OutstandingRecord, error)
	// List returns records matching filter.UserID ordered by creation; the status
	// filter is applied by callers against the live status.
	List(ctx context.Context, filter domain.OutstandingFilter) ([]domain.OutstandingRecord, error)

	ListHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.PaymentHistoryEntry, error)
	GetHistoryEntry(ctx context.Context, id string) (*domain.PaymentHistoryEntry, error)

	WithinRecord(ctx context.Context, id string, fn func(tx RecordTx) error) error
}
