package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"outstanding-ledger-backend/internal/domain"
	"outstanding-ledger-backend/internal/logger"
	"outstanding-ledger-backend/internal/repository"
)

// PaymentRequest is a normalized settlement against one record.
type PaymentRequest struct {
	OutstandingID string
	Amount        decimal.Decimal
	Method        domain.PaymentMethod
	TransactionID string
	Description   string
	PaymentDate   *time.Time
}

// Amendment is a set of administrative edits applied to a record in one unit.
// Nil fields are left untouched.
type Amendment struct {
	OrderID       *string
	InvoiceNumber *string
	Notes         *string
	DueDate       *time.Time
	ClearDueDate  bool
	Amount        *decimal.Decimal
	PendingAmount *decimal.Decimal
}

func (a Amendment) monetary() bool {
	return a.Amount != nil || a.PendingAmount != nil
}

// ReconciliationEngine owns every write to a record. Each operation runs as one
// per-record unit of work and is retried when it loses a race.
type ReconciliationEngine struct {
	repo       repository.OutstandingRepository
	maxRetries int
	now        func() time.Time
}

func NewReconciliationEngine(repo repository.OutstandingRepository, maxRetries int, now func() time.Time) *ReconciliationEngine {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &ReconciliationEngine{repo: repo, maxRetries: maxRetries, now: now}
}

// ApplyPayment settles part or all of a record's pending balance.
//
// A repeated request carrying the same transaction id returns the entry already
// recorded instead of settling twice; reusing the id for a different amount or
// method is a conflict.
func (e *ReconciliationEngine) ApplyPayment(ctx context.Context, req PaymentRequest) (*domain.OutstandingRecord, *domain.PaymentHistoryEntry, error) {
	logger.EnterMethod("ReconciliationEngine.ApplyPayment", "outstandingID", req.OutstandingID, "amount", req.Amount, "method", req.Method)

	if !req.Amount.IsPositive() {
		err := domain.NewError(domain.KindInvalidAmount, "payment amount must be greater than zero")
		logger.ExitMethodWithError("ReconciliationEngine.ApplyPayment", err, "outstandingID", req.OutstandingID)
		return nil, nil, err
	}
	if !req.Method.Valid() {
		err := domain.NewError(domain.KindInvalidMethod, "unsupported payment method %q", req.Method)
		logger.ExitMethodWithError("ReconciliationEngine.ApplyPayment", err, "outstandingID", req.OutstandingID)
		return nil, nil, err
	}

	var (
		updated *domain.OutstandingRecord
		entry   *domain.PaymentHistoryEntry
	)
	err := e.withinRecord(ctx, "ApplyPayment", req.OutstandingID, func(tx repository.RecordTx) error {
		now := e.now()
		rec := tx.Record()
		rec.Refresh(now)

		if req.TransactionID != "" {
			prior, err := findByTransaction(ctx, tx, req.TransactionID)
			if err != nil {
				return err
			}
			if prior != nil {
				if !prior.Amount.Equal(req.Amount) || prior.PaymentMethod != req.Method {
					return domain.NewError(domain.KindConflict,
						"transaction %s was already applied with a different amount or method", req.TransactionID)
				}
				updated, entry = rec, prior
				return nil
			}
		}

		if req.Amount.GreaterThan(rec.PendingAmount) {
			return domain.NewError(domain.KindInvalidAmount,
				"payment %s exceeds pending balance %s", req.Amount.StringFixed(2), rec.PendingAmount.StringFixed(2))
		}

		rec.ClearedAmount = rec.ClearedAmount.Add(req.Amount)
		rec.Refresh(now)

		paymentDate := domain.DateOf(now)
		if req.PaymentDate != nil {
			paymentDate = domain.DateOf(*req.PaymentDate)
		}
		newEntry := &domain.PaymentHistoryEntry{
			ID:            uuid.New().String(),
			OutstandingID: rec.ID,
			UserID:        rec.UserID,
			Amount:        req.Amount,
			PaymentMethod: req.Method,
			TransactionID: req.TransactionID,
			Description:   req.Description,
			PaymentDate:   paymentDate,
		}

		if err := tx.Save(ctx, rec); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, newEntry); err != nil {
			return err
		}
		updated, entry = rec, newEntry
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("ReconciliationEngine.ApplyPayment", err, "outstandingID", req.OutstandingID)
		return nil, nil, err
	}

	logger.ExitMethod("ReconciliationEngine.ApplyPayment", "outstandingID", req.OutstandingID,
		"entryID", entry.ID, "pending", updated.PendingAmount, "status", updated.Status)
	return updated, entry, nil
}

// DeleteHistoryEntry removes one settlement and recomputes the owner's cleared
// amount from the remaining history in the same unit.
func (e *ReconciliationEngine) DeleteHistoryEntry(ctx context.Context, entryID string) (*domain.OutstandingRecord, error) {
	logger.EnterMethod("ReconciliationEngine.DeleteHistoryEntry", "entryID", entryID)

	existing, err := e.repo.GetHistoryEntry(ctx, entryID)
	if err != nil {
		err = translate(err, "payment history entry %s not found", entryID)
		logger.ExitMethodWithError("ReconciliationEngine.DeleteHistoryEntry", err, "entryID", entryID)
		return nil, err
	}

	var updated *domain.OutstandingRecord
	err = e.withinRecord(ctx, "DeleteHistoryEntry", existing.OutstandingID, func(tx repository.RecordTx) error {
		if err := tx.DeleteHistory(ctx, entryID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.NewError(domain.KindNotFound, "payment history entry %s not found", entryID)
			}
			return err
		}
		remaining, err := tx.History(ctx)
		if err != nil {
			return err
		}

		rec := tx.Record()
		rec.ClearedAmount = sumEntries(remaining)
		rec.Refresh(e.now())
		if err := tx.Save(ctx, rec); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("ReconciliationEngine.DeleteHistoryEntry", err, "entryID", entryID)
		return nil, err
	}

	logger.ExitMethod("ReconciliationEngine.DeleteHistoryEntry", "entryID", entryID, "cleared", updated.ClearedAmount)
	return updated, nil
}

// Amend applies administrative edits. Monetary corrections keep
// 0 <= cleared <= amount; a pending-only correction sets amount = cleared + pending.
func (e *ReconciliationEngine) Amend(ctx context.Context, id string, a Amendment) (*domain.OutstandingRecord, error) {
	logger.EnterMethod("ReconciliationEngine.Amend", "id", id, "monetary", a.monetary())

	var updated *domain.OutstandingRecord
	err := e.withinRecord(ctx, "Amend", id, func(tx repository.RecordTx) error {
		rec := tx.Record()

		if a.OrderID != nil {
			rec.OrderID = *a.OrderID
		}
		if a.InvoiceNumber != nil {
			rec.InvoiceNumber = *a.InvoiceNumber
		}
		if a.Notes != nil {
			rec.Notes = *a.Notes
		}
		if a.ClearDueDate {
			rec.DueDate = nil
		} else if a.DueDate != nil {
			due := domain.DateOf(*a.DueDate)
			rec.DueDate = &due
		}

		if a.monetary() {
			amount, err := correctedAmount(rec.ClearedAmount, a.Amount, a.PendingAmount)
			if err != nil {
				return err
			}
			rec.Amount = amount
		}

		rec.Refresh(e.now())
		if err := tx.Save(ctx, rec); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("ReconciliationEngine.Amend", err, "id", id)
		return nil, err
	}

	logger.ExitMethod("ReconciliationEngine.Amend", "id", id, "status", updated.Status)
	return updated, nil
}

// Delete removes a record. With history present it is refused unless cascade
// is set, in which case the history goes in the same unit.
func (e *ReconciliationEngine) Delete(ctx context.Context, id string, cascade bool) error {
	logger.EnterMethod("ReconciliationEngine.Delete", "id", id, "cascade", cascade)

	err := e.withinRecord(ctx, "Delete", id, func(tx repository.RecordTx) error {
		history, err := tx.History(ctx)
		if err != nil {
			return err
		}
		if len(history) > 0 && !cascade {
			return domain.NewError(domain.KindConflict,
				"outstanding record %s has %d payment history entries; delete with cascade to remove them", id, len(history))
		}
		return tx.DeleteRecord(ctx)
	})
	if err != nil {
		logger.ExitMethodWithError("ReconciliationEngine.Delete", err, "id", id)
		return err
	}

	logger.ExitMethod("ReconciliationEngine.Delete", "id", id)
	return nil
}

// Rematerialize rewrites the cached status label when it differs from the live one.
func (e *ReconciliationEngine) Rematerialize(ctx context.Context, id string) (bool, error) {
	changed := false
	err := e.withinRecord(ctx, "Rematerialize", id, func(tx repository.RecordTx) error {
		rec := tx.Record()
		stored := rec.Status
		rec.Refresh(e.now())
		if rec.Status == stored {
			return nil
		}
		changed = true
		return tx.Save(ctx, rec)
	})
	return changed, err
}

// withinRecord runs fn as a unit of work, retrying lost races up to maxRetries
// before reporting a conflict. Repository sentinels become domain errors here.
func (e *ReconciliationEngine) withinRecord(ctx context.Context, op, id string, fn func(tx repository.RecordTx) error) error {
	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		err := e.repo.WithinRecord(ctx, id, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrConcurrentUpdate) {
			return translate(err, "outstanding record %s not found", id)
		}
		lastErr = err
		logger.Debug("Retrying contended unit of work", "op", op, "id", id, "attempt", attempt)
	}
	return domain.WrapError(domain.KindConflict, lastErr,
		"%s on outstanding record %s gave up after %d attempts", op, id, e.maxRetries)
}

// translate maps repository.ErrNotFound onto a NOT_FOUND domain error.
func translate(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) && domain.KindOf(err) == "" {
		return domain.WrapError(domain.KindNotFound, err, format, args...)
	}
	return err
}

func correctedAmount(cleared decimal.Decimal, amount, pending *decimal.Decimal) (decimal.Decimal, error) {
	var next decimal.Decimal
	switch {
	case amount != nil && pending != nil:
		if !amount.Sub(cleared).Equal(*pending) {
			return decimal.Zero, domain.NewError(domain.KindValidation,
				"amount %s and pending amount %s disagree with cleared amount %s",
				amount.StringFixed(2), pending.StringFixed(2), cleared.StringFixed(2))
		}
		next = *amount
	case amount != nil:
		next = *amount
	default:
		if pending.IsNegative() {
			return decimal.Zero, domain.NewError(domain.KindInvalidAmount, "pending amount cannot be negative")
		}
		next = cleared.Add(*pending)
	}

	if !next.IsPositive() {
		return decimal.Zero, domain.NewError(domain.KindInvalidAmount, "amount must be greater than zero")
	}
	if cleared.GreaterThan(next) {
		return decimal.Zero, domain.NewError(domain.KindInvalidAmount,
			"amount %s is below the cleared amount %s", next.StringFixed(2), cleared.StringFixed(2))
	}
	return next, nil
}

func findByTransaction(ctx context.Context, tx repository.RecordTx, transactionID string) (*domain.PaymentHistoryEntry, error) {
	history, err := tx.History(ctx)
	if err != nil {
		return nil, err
	}
	for i := range history {
		if history[i].TransactionID == transactionID {
			return &history[i], nil
		}
	}
	return nil, nil
}

func sumEntries(entries []domain.PaymentHistoryEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}
