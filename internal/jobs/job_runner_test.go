package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"outstanding-ledger-backend/internal/config"
	"outstanding-ledger-backend/internal/domain"
	"outstanding-ledger-backend/internal/repository/memory"
	"outstanding-ledger-backend/internal/service"
)

type MockOutstandingService struct {
	mock.Mock
	service.OutstandingService
}

func (m *MockOutstandingService) RefreshStatuses(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestJobRunner_RefreshStatuses(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	svc := service.NewOutstandingService(store, service.LedgerOptions{
		MaxRetries: 3,
		Now:        func() time.Time { return now },
	})

	rec, err := svc.Create(ctx, service.CreateOutstandingInput{UserID: "retailer-1", Amount: "75", DueDate: "2026-10-15"})
	require.NoError(t, err)

	now = now.Add(48 * time.Hour)
	jr := NewJobRunner(svc, &config.Config{})
	require.NoError(t, jr.RunJob("refresh-statuses"))

	stored, err := store.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutstandingStatusOverdue, stored.Status)
}

func TestJobRunner_UnknownJob(t *testing.T) {
	jr := NewJobRunner(new(MockOutstandingService), &config.Config{})
	err := jr.RunJob("mark-overdue-rentals")
	assert.Error(t, err)
	assert.Equal(t, []string{"refresh-statuses"}, jr.JobNames())
}

func TestJobRunner_ErrorsAreLoggedNotRaised(t *testing.T) {
	svc := new(MockOutstandingService)
	svc.On("RefreshStatuses", mock.Anything).Return(0, errors.New("database is down")).Once()

	jr := NewJobRunner(svc, &config.Config{})
	assert.NotPanics(t, jr.RefreshStatuses)
	svc.AssertExpectations(t)
}

func TestJobRunner_RecoversFromPanic(t *testing.T) {
	jr := NewJobRunner(new(MockOutstandingService), &config.Config{})
	assert.NotPanics(t, func() {
		jr.runWithRecovery("Explodes", func() { panic("boom") })
	})
}
