package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outstanding-ledger-backend/internal/domain"
	"outstanding-ledger-backend/internal/repository"
)

var recordCols = []string{
	"id", "user_id", "order_id", "invoice_number", "amount", "cleared_amount", "pending_amount",
	"due_date", "status", "notes", "version", "created_at", "updated_at",
}

var historyCols = []string{
	"id", "outstanding_id", "user_id", "amount", "payment_method",
	"transaction_id", "description", "payment_date", "created_at",
}

var created = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

const (
	recID        = "7d8e4c1a-0000-4000-8000-000000000001"
	missingID    = "7d8e4c1a-0000-4000-8000-0000000000ff"
	entryID      = "5b2f9e60-0000-4000-8000-0000000000a1"
	otherEntryID = "5b2f9e60-0000-4000-8000-0000000000a9"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func recordRow(id, cleared, pending string, version int64) *sqlmock.Rows {
	return sqlmock.NewRows(recordCols).
		AddRow(id, "retailer-1", "ORD-1", "", "100.00", cleared, pending, nil, "pending", "", version, created, created)
}

func TestOutstandingRepository_Create(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	rec := &domain.OutstandingRecord{
		ID:            "7d8e4c1a-0000-4000-8000-000000000001",
		UserID:        "retailer-1",
		Amount:        decimal.RequireFromString("1000"),
		ClearedAmount: decimal.Zero,
		PendingAmount: decimal.RequireFromString("1000"),
		Status:        domain.OutstandingStatusPending,
	}

	mock.ExpectQuery("INSERT INTO outstanding_records").
		WithArgs(rec.ID, rec.UserID, "", "", "1000", "0", "1000", nil, "pending", "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"version", "created_at", "updated_at"}).AddRow(1, created, created))

	err := store.Create(ctx, rec)
	assert.NoError(t, err)
	assert.Equal(t, int32(1), rec.Version)
	assert.Equal(t, created, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutstandingRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery(`FROM outstanding_records WHERE id = \$1`).
			WithArgs(recID).
			WillReturnRows(recordRow(recID, "40.00", "60.00", 3))

		rec, err := store.GetByID(ctx, recID)
		require.NoError(t, err)
		assert.Equal(t, "ORD-1", rec.OrderID)
		assert.True(t, rec.ClearedAmount.Equal(decimal.RequireFromString("40")))
		assert.Nil(t, rec.DueDate)
		assert.Equal(t, domain.OutstandingStatusPending, rec.Status)
		assert.Equal(t, int32(3), rec.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not found", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery(`FROM outstanding_records WHERE id = \$1`).
			WithArgs(missingID).
			WillReturnRows(sqlmock.NewRows(recordCols))

		_, err := store.GetByID(ctx, missingID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestOutstandingRepository_MalformedIDs(t *testing.T) {
	ctx := context.Background()
	store, mock := newMock(t)

	_, err := store.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = store.GetHistoryEntry(ctx, "abc")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	called := false
	err = store.WithinRecord(ctx, "abc", func(tx repository.RecordTx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.False(t, called)

	entries, err := store.ListHistory(ctx, domain.HistoryFilter{OutstandingID: "abc"})
	require.NoError(t, err)
	assert.Empty(t, entries)

	// None of the above may reach the database.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTx_DeleteHistoryMalformedID(t *testing.T) {
	ctx := context.Background()
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(recID).WillReturnRows(recordRow(recID, "0", "100.00", 1))
	mock.ExpectRollback()

	err := store.WithinRecord(ctx, recID, func(tx repository.RecordTx) error {
		return tx.DeleteHistory(ctx, "abc")
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutstandingRepository_CreateNumericOverflow(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery("INSERT INTO outstanding_records").
		WillReturnError(&pq.Error{Code: "22003", Message: "numeric field overflow"})

	err := store.Create(context.Background(), &domain.OutstandingRecord{
		ID:            recID,
		UserID:        "retailer-1",
		Amount:        decimal.RequireFromString("10000000000000"),
		PendingAmount: decimal.RequireFromString("10000000000000"),
		Status:        domain.OutstandingStatusPending,
	})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutstandingRepository_List(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery(`FROM outstanding_records WHERE user_id = \$1 ORDER BY created_at ASC, id ASC`).
		WithArgs("retailer-1").
		WillReturnRows(recordRow(recID, "0", "100.00", 1))

	records, err := store.List(ctx, domain.OutstandingFilter{UserID: "retailer-1", Status: domain.OutstandingStatusOverdue})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutstandingRepository_ListHistory(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM payment_history WHERE 1 = 1 AND outstanding_id = \$1 AND user_id = \$2 ORDER BY payment_date`).
		WithArgs(recID, "retailer-1").
		WillReturnRows(sqlmock.NewRows(historyCols).
			AddRow(entryID, recID, "retailer-1", "25.00", "upi", "TXN-9", "", day, created))

	entries, err := store.ListHistory(ctx, domain.HistoryFilter{OutstandingID: recID, UserID: "retailer-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.PaymentMethodUPI, entries[0].PaymentMethod)
	assert.Equal(t, "TXN-9", entries[0].TransactionID)
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("25")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutstandingRepository_WithinRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("Commits record and history together", func(t *testing.T) {
		store, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM outstanding_records WHERE id = \$1 FOR UPDATE`).
			WithArgs(recID).
			WillReturnRows(recordRow(recID, "0", "100.00", 1))
		mock.ExpectQuery("SELECT (.+) FROM payment_history").
			WithArgs(recID).
			WillReturnRows(sqlmock.NewRows(historyCols))
		mock.ExpectQuery("UPDATE outstanding_records SET").
			WithArgs("ORD-1", "", "100", "30", "70", nil, "partial", "", sqlmock.AnyArg(), recID).
			WillReturnRows(sqlmock.NewRows([]string{"version", "updated_at"}).AddRow(2, created))
		mock.ExpectQuery("INSERT INTO payment_history").
			WithArgs(entryID, recID, "retailer-1", "30", "cash", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))
		mock.ExpectCommit()

		err := store.WithinRecord(ctx, recID, func(tx repository.RecordTx) error {
			history, err := tx.History(ctx)
			if err != nil {
				return err
			}
			assert.Empty(t, history)

			rec := tx.Record()
			rec.ClearedAmount = decimal.RequireFromString("30")
			rec.PendingAmount = decimal.RequireFromString("70")
			rec.Status = domain.OutstandingStatusPartial
			if err := tx.Save(ctx, rec); err != nil {
				return err
			}
			assert.Equal(t, int32(2), rec.Version)

			return tx.AppendHistory(ctx, &domain.PaymentHistoryEntry{
				ID:            entryID,
				OutstandingID: recID,
				UserID:        "retailer-1",
				Amount:        decimal.RequireFromString("30"),
				PaymentMethod: domain.PaymentMethodCash,
				PaymentDate:   created,
			})
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Callback error rolls back", func(t *testing.T) {
		store, mock := newMock(t)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs(recID).WillReturnRows(recordRow(recID, "0", "100.00", 1))
		mock.ExpectRollback()

		err := store.WithinRecord(ctx, recID, func(tx repository.RecordTx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing record", func(t *testing.T) {
		store, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs(missingID).WillReturnRows(sqlmock.NewRows(recordCols))
		mock.ExpectRollback()

		called := false
		err := store.WithinRecord(ctx, missingID, func(tx repository.RecordTx) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.False(t, called)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Serialization failure is retryable", func(t *testing.T) {
		store, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs(recID).WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})
		mock.ExpectRollback()

		err := store.WithinRecord(ctx, recID, func(tx repository.RecordTx) error { return nil })
		assert.ErrorIs(t, err, repository.ErrConcurrentUpdate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRecordTx_DeleteHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("Entry of another record", func(t *testing.T) {
		store, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs(recID).WillReturnRows(recordRow(recID, "0", "100.00", 1))
		mock.ExpectExec(`DELETE FROM payment_history WHERE id = \$1 AND outstanding_id = \$2`).
			WithArgs(otherEntryID, recID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.WithinRecord(ctx, recID, func(tx repository.RecordTx) error {
			return tx.DeleteHistory(ctx, otherEntryID)
		})
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Record with history", func(t *testing.T) {
		store, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs(recID).WillReturnRows(recordRow(recID, "30.00", "70.00", 2))
		mock.ExpectExec(`DELETE FROM payment_history WHERE outstanding_id = \$1`).
			WithArgs(recID).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`DELETE FROM outstanding_records WHERE id = \$1`).
			WithArgs(recID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithinRecord(ctx, recID, func(tx repository.RecordTx) error {
			return tx.DeleteRecord(ctx)
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestClassify(t *testing.T) {
	for _, code := range []pq.ErrorCode{"40001", "40P01", "55P03"} {
		err := classify(&pq.Error{Code: code})
		assert.ErrorIs(t, err, repository.ErrConcurrentUpdate, string(code))
	}

	overflow := classify(&pq.Error{Code: "22003"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(overflow))

	unique := &pq.Error{Code: "23505"}
	assert.Equal(t, error(unique), classify(unique))
	assert.Nil(t, classify(nil))
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	assert.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS outstanding_records").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err = Migrate(context.Background(), db)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}
