package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"outstanding-ledger-backend/internal/domain"
	"outstanding-ledger-backend/internal/logger"
	"outstanding-ledger-backend/internal/repository"
	"outstanding-ledger-backend/internal/utils"
)

type LedgerOptions struct {
	MaxRetries int
	// Location is the calendar used to decide whether a due date has passed.
	Location *time.Location
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

type outstandingService struct {
	repo    repository.OutstandingRepository
	engine  *ReconciliationEngine
	summary *SummaryAggregator
	now     func() time.Time
}

func NewOutstandingService(repo repository.OutstandingRepository, opts LedgerOptions) OutstandingService {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := opts.Now
	if clock == nil {
		clock = time.Now
	}
	now := func() time.Time { return clock().In(loc) }

	return &outstandingService{
		repo:    repo,
		engine:  NewReconciliationEngine(repo, opts.MaxRetries, now),
		summary: NewSummaryAggregator(repo, now),
		now:     now,
	}
}

func (s *outstandingService) Create(ctx context.Context, in CreateOutstandingInput) (*domain.OutstandingRecord, error) {
	logger.EnterMethod("outstandingService.Create", "userID", in.UserID, "amount", in.Amount)

	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		err := domain.NewError(domain.KindValidation, "user id is required")
		logger.ExitMethodWithError("outstandingService.Create", err)
		return nil, err
	}
	amount, err := utils.ParseAmount(in.Amount)
	if err != nil {
		err = domain.WrapError(domain.KindValidation, err, "invalid amount")
		logger.ExitMethodWithError("outstandingService.Create", err, "userID", userID)
		return nil, err
	}
	if !amount.IsPositive() {
		err := domain.NewError(domain.KindInvalidAmount, "amount must be greater than zero")
		logger.ExitMethodWithError("outstandingService.Create", err, "userID", userID)
		return nil, err
	}
	dueDate, err := utils.ParseOptionalDate(in.DueDate)
	if err != nil {
		err = domain.WrapError(domain.KindValidation, err, "invalid due date")
		logger.ExitMethodWithError("outstandingService.Create", err, "userID", userID)
		return nil, err
	}

	rec := &domain.OutstandingRecord{
		ID:            uuid.New().String(),
		UserID:        userID,
		OrderID:       strings.TrimSpace(in.OrderID),
		InvoiceNumber: strings.TrimSpace(in.InvoiceNumber),
		Amount:        amount,
		ClearedAmount: decimal.Zero,
		DueDate:       dueDate,
		Notes:         strings.TrimSpace(in.Notes),
	}
	rec.Refresh(s.now())

	if err := s.repo.Create(ctx, rec); err != nil {
		logger.ExitMethodWithError("outstandingService.Create", err, "userID", userID)
		return nil, err
	}

	logger.Info("Outstanding record created", "id", rec.ID, "user_id", rec.UserID, "amount", rec.Amount.StringFixed(2), "status", rec.Status)
	logger.ExitMethod("outstandingService.Create", "id", rec.ID)
	return rec, nil
}

func (s *outstandingService) Get(ctx context.Context, id string) (*domain.OutstandingRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "outstanding record %s not found", id)
	}
	rec.Refresh(s.now())
	return rec, nil
}

func (s *outstandingService) Update(ctx context.Context, id string, in UpdateOutstandingInput) (*domain.OutstandingRecord, error) {
	logger.EnterMethod("outstandingService.Update", "id", id)

	a := Amendment{
		OrderID:       utils.TrimPtr(in.OrderID),
		InvoiceNumber: utils.TrimPtr(in.InvoiceNumber),
		Notes:         utils.TrimPtr(in.Notes),
	}
	if in.DueDate != nil {
		due, err := utils.ParseOptionalDate(*in.DueDate)
		if err != nil {
			err = domain.WrapError(domain.KindValidation, err, "invalid due date")
			logger.ExitMethodWithError("outstandingService.Update", err, "id", id)
			return nil, err
		}
		a.DueDate = due
		a.ClearDueDate = due == nil
	}
	if in.Amount != nil {
		amount, err := utils.ParseAmount(*in.Amount)
		if err != nil {
			err = domain.WrapError(domain.KindValidation, err, "invalid amount")
			logger.ExitMethodWithError("outstandingService.Update", err, "id", id)
			return nil, err
		}
		a.Amount = &amount
	}
	if in.PendingAmount != nil {
		pending, err := utils.ParseAmount(*in.PendingAmount)
		if err != nil {
			err = domain.WrapError(domain.KindValidation, err, "invalid pending amount")
			logger.ExitMethodWithError("outstandingService.Update", err, "id", id)
			return nil, err
		}
		a.PendingAmount = &pending
	}

	rec, err := s.engine.Amend(ctx, id, a)
	if err != nil {
		logger.ExitMethodWithError("outstandingService.Update", err, "id", id)
		return nil, err
	}
	if a.monetary() {
		logger.Info("Outstanding amount corrected", "id", id, "amount", rec.Amount.StringFixed(2), "pending", rec.PendingAmount.StringFixed(2))
	}
	logger.ExitMethod("outstandingService.Update", "id", id)
	return rec, nil
}

func (s *outstandingService) Delete(ctx context.Context, id string, cascade bool) error {
	if err := s.engine.Delete(ctx, id, cascade); err != nil {
		return err
	}
	logger.Info("Outstanding record deleted", "id", id, "cascade", cascade)
	return nil
}

func (s *outstandingService) List(ctx context.Context, in ListOutstandingInput) ([]domain.OutstandingRecord, error) {
	filter, err := toFilter(in)
	if err != nil {
		return nil, err
	}
	return listLive(ctx, s.repo, filter, s.now())
}

func (s *outstandingService) GetHistory(ctx context.Context, in HistoryInput) ([]domain.PaymentHistoryEntry, error) {
	logger.EnterMethod("outstandingService.GetHistory", "outstandingID", in.OutstandingID, "userID", in.UserID, "type", in.Type)

	if in.OutstandingID != "" {
		if _, err := s.repo.GetByID(ctx, in.OutstandingID); err != nil {
			return nil, translate(err, "outstanding record %s not found", in.OutstandingID)
		}
	}
	// Settlements carry no earned/redeemed classification, so Type never narrows the result.
	entries, err := s.repo.ListHistory(ctx, domain.HistoryFilter{
		OutstandingID: in.OutstandingID,
		UserID:        strings.TrimSpace(in.UserID),
		Type:          in.Type,
	})
	if err != nil {
		logger.ExitMethodWithError("outstandingService.GetHistory", err)
		return nil, err
	}

	logger.ExitMethod("outstandingService.GetHistory", "count", len(entries))
	return entries, nil
}

func (s *outstandingService) ApplyPayment(ctx context.Context, in ApplyPaymentInput) (*domain.OutstandingRecord, *domain.PaymentHistoryEntry, error) {
	logger.EnterMethod("outstandingService.ApplyPayment", "outstandingID", in.OutstandingID, "amount", in.Amount)

	amount, err := utils.ParseAmount(in.Amount)
	if err != nil {
		err = domain.WrapError(domain.KindValidation, err, "invalid payment amount")
		logger.ExitMethodWithError("outstandingService.ApplyPayment", err, "outstandingID", in.OutstandingID)
		return nil, nil, err
	}
	paymentDate, err := utils.ParseOptionalDate(in.PaymentDate)
	if err != nil {
		err = domain.WrapError(domain.KindValidation, err, "invalid payment date")
		logger.ExitMethodWithError("outstandingService.ApplyPayment", err, "outstandingID", in.OutstandingID)
		return nil, nil, err
	}

	rec, entry, err := s.engine.ApplyPayment(ctx, PaymentRequest{
		OutstandingID: in.OutstandingID,
		Amount:        amount,
		Method:        domain.PaymentMethod(strings.ToLower(strings.TrimSpace(in.Method))),
		TransactionID: strings.TrimSpace(in.TransactionID),
		Description:   strings.TrimSpace(in.Description),
		PaymentDate:   paymentDate,
	})
	if err != nil {
		logger.ExitMethodWithError("outstandingService.ApplyPayment", err, "outstandingID", in.OutstandingID)
		return nil, nil, err
	}

	logger.Info("Payment applied", "outstanding_id", rec.ID, "entry_id", entry.ID,
		"amount", entry.Amount.StringFixed(2), "pending", rec.PendingAmount.StringFixed(2), "status", rec.Status)
	logger.ExitMethod("outstandingService.ApplyPayment", "entryID", entry.ID)
	return rec, entry, nil
}

func (s *outstandingService) DeleteHistoryEntry(ctx context.Context, entryID string) (*domain.OutstandingRecord, error) {
	rec, err := s.engine.DeleteHistoryEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	logger.Warn("Payment history entry deleted", "entry_id", entryID, "outstanding_id", rec.ID, "cleared", rec.ClearedAmount.StringFixed(2))
	return rec, nil
}

func (s *outstandingService) GetSummary(ctx context.Context, in ListOutstandingInput) (*domain.OutstandingSummary, error) {
	filter, err := toFilter(in)
	if err != nil {
		return nil, err
	}
	return s.summary.Summarize(ctx, filter)
}

func (s *outstandingService) RefreshStatuses(ctx context.Context) (int, error) {
	logger.EnterMethod("outstandingService.RefreshStatuses")

	records, err := s.repo.List(ctx, domain.OutstandingFilter{})
	if err != nil {
		logger.ExitMethodWithError("outstandingService.RefreshStatuses", err)
		return 0, err
	}

	now := s.now()
	updated := 0
	for _, rec := range records {
		stored := rec.Status
		rec.Refresh(now)
		if rec.Status == stored {
			continue
		}
		changed, err := s.engine.Rematerialize(ctx, rec.ID)
		if domain.KindOf(err) == domain.KindNotFound {
			continue // deleted since the scan
		}
		if err != nil {
			logger.ExitMethodWithError("outstandingService.RefreshStatuses", err, "id", rec.ID)
			return updated, err
		}
		if changed {
			updated++
		}
	}

	logger.ExitMethod("outstandingService.RefreshStatuses", "scanned", len(records), "updated", updated)
	return updated, nil
}

func toFilter(in ListOutstandingInput) (domain.OutstandingFilter, error) {
	status, err := domain.ParseOutstandingStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if err != nil {
		return domain.OutstandingFilter{}, err
	}
	return domain.OutstandingFilter{UserID: strings.TrimSpace(in.UserID), Status: status}, nil
}
