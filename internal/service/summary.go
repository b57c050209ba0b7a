package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"outstanding-ledger-backend/internal/domain"
	"outstanding-ledger-backend/internal/logger"
	"outstanding-ledger-backend/internal/repository"
)

// SummaryAggregator totals records using the same live view the list endpoint returns.
type SummaryAggregator struct {
	repo repository.OutstandingRepository
	now  func() time.Time
}

func NewSummaryAggregator(repo repository.OutstandingRepository, now func() time.Time) *SummaryAggregator {
	return &SummaryAggregator{repo: repo, now: now}
}

func (a *SummaryAggregator) Summarize(ctx context.Context, filter domain.OutstandingFilter) (*domain.OutstandingSummary, error) {
	logger.EnterMethod("SummaryAggregator.Summarize", "userID", filter.UserID, "status", filter.Status)

	records, err := listLive(ctx, a.repo, filter, a.now())
	if err != nil {
		logger.ExitMethodWithError("SummaryAggregator.Summarize", err)
		return nil, err
	}

	summary := &domain.OutstandingSummary{
		TotalAmount:  decimal.Zero,
		TotalPending: decimal.Zero,
		TotalCleared: decimal.Zero,
		StatusCount:  make(map[domain.OutstandingStatus]int32),
	}
	for _, rec := range records {
		summary.TotalAmount = summary.TotalAmount.Add(rec.Amount)
		summary.TotalPending = summary.TotalPending.Add(rec.PendingAmount)
		summary.TotalCleared = summary.TotalCleared.Add(rec.ClearedAmount)
		summary.TotalCount++
		summary.StatusCount[rec.Status]++
	}

	logger.ExitMethod("SummaryAggregator.Summarize", "count", summary.TotalCount, "pending", summary.TotalPending)
	return summary, nil
}

// listLive loads records and re-derives pending/status as of now before
// applying the status filter, so a stale cached label never decides membership.
func listLive(ctx context.Context, repo repository.OutstandingRepository, filter domain.OutstandingFilter, now time.Time) ([]domain.OutstandingRecord, error) {
	records, err := repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := records[:0]
	for _, rec := range records {
		rec.Refresh(now)
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
