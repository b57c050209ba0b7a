package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"outstanding-ledger-backend/internal/domain"
	"outstanding-ledger-backend/internal/logger"
	"outstanding-ledger-backend/internal/repository"
)

const recordColumns = `id, user_id, COALESCE(order_id, ''), COALESCE(invoice_number, ''),
	       amount, cleared_amount, pending_amount, due_date, status, COALESCE(notes, ''),
	       version, created_at, updated_at`

const historyColumns = `id, outstanding_id, user_id, amount, payment_method,
	       COALESCE(transaction_id, ''), COALESCE(description, ''), payment_date, created_at`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

type outstandingRepository struct {
	db *sql.DB
}

func NewOutstandingRepository(db *sql.DB) repository.OutstandingRepository {
	return &outstandingRepository{db: db}
}

func (r *outstandingRepository) Create(ctx context.Context, rec *domain.OutstandingRecord) error {
	logger.EnterMethod("outstandingRepository.Create", "userID", rec.UserID, "amount", rec.Amount)

	query := `
		INSERT INTO outstanding_records (
			id, user_id, order_id, invoice_number, amount, cleared_amount, pending_amount,
			due_date, status, notes, version, created_at, updated_at
		) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, 1, $11, $11)
		RETURNING version, created_at, updated_at
	`
	now := time.Now()
	logger.DatabaseCall("insert", "outstanding_records", "id", rec.ID)
	err := r.db.QueryRowContext(ctx, query,
		rec.ID, rec.UserID, rec.OrderID, rec.InvoiceNumber, rec.Amount, rec.ClearedAmount, rec.PendingAmount,
		rec.DueDate, rec.Status, rec.Notes, now,
	).Scan(&rec.Version, &rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		logger.ExitMethodWithError("outstandingRepository.Create", err, "id", rec.ID)
		return classify(err)
	}

	logger.ExitMethod("outstandingRepository.Create", "id", rec.ID)
	return nil
}

func (r *outstandingRepository) GetByID(ctx context.Context, id string) (*domain.OutstandingRecord, error) {
	logger.EnterMethod("outstandingRepository.GetByID", "id", id)

	if !isRowID(id) {
		logger.ExitMethod("outstandingRepository.GetByID", "id", id, "found", false)
		return nil, repository.ErrNotFound
	}
	rec, err := scanRecord(r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM outstanding_records WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		logger.ExitMethod("outstandingRepository.GetByID", "id", id, "found", false)
		return nil, repository.ErrNotFound
	}
	if err != nil {
		logger.ExitMethodWithError("outstandingRepository.GetByID", err, "id", id)
		return nil, classify(err)
	}

	logger.ExitMethod("outstandingRepository.GetByID", "id", id)
	return rec, nil
}

func (r *outstandingRepository) List(ctx context.Context, filter domain.OutstandingFilter) ([]domain.OutstandingRecord, error) {
	logger.EnterMethod("outstandingRepository.List", "userID", filter.UserID)

	query := `SELECT ` + recordColumns + ` FROM outstanding_records`
	args := []interface{}{}
	if filter.UserID != "" {
		query += " WHERE user_id = $1"
		args = append(args, filter.UserID)
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.ExitMethodWithError("outstandingRepository.List", err, "userID", filter.UserID)
		return nil, err
	}
	defer rows.Close()

	records := []domain.OutstandingRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			logger.ExitMethodWithError("outstandingRepository.List", err, "userID", filter.UserID)
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.ExitMethod("outstandingRepository.List", "userID", filter.UserID, "count", len(records))
	return records, nil
}

func (r *outstandingRepository) ListHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.PaymentHistoryEntry, error) {
	logger.EnterMethod("outstandingRepository.ListHistory", "outstandingID", filter.OutstandingID, "userID", filter.UserID)

	if filter.OutstandingID != "" && !isRowID(filter.OutstandingID) {
		logger.ExitMethod("outstandingRepository.ListHistory", "count", 0)
		return []domain.PaymentHistoryEntry{}, nil
	}

	entries, err := listHistory(ctx, r.db, filter)
	if err != nil {
		logger.ExitMethodWithError("outstandingRepository.ListHistory", err)
		return nil, err
	}

	logger.ExitMethod("outstandingRepository.ListHistory", "count", len(entries))
	return entries, nil
}

func (r *outstandingRepository) GetHistoryEntry(ctx context.Context, id string) (*domain.PaymentHistoryEntry, error) {
	if !isRowID(id) {
		return nil, repository.ErrNotFound
	}
	e, err := scanHistory(r.db.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM payment_history WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return e, nil
}

// WithinRecord runs fn inside a transaction holding a row lock on the record,
// so concurrent units against the same id serialize while other ids proceed.
func (r *outstandingRepository) WithinRecord(ctx context.Context, id string, fn func(tx repository.RecordTx) error) error {
	logger.EnterMethod("outstandingRepository.WithinRecord", "id", id)

	if !isRowID(id) {
		logger.ExitMethod("outstandingRepository.WithinRecord", "id", id, "found", false)
		return repository.ErrNotFound
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("outstandingRepository.WithinRecord", err, "id", id)
		return classify(err)
	}
	defer tx.Rollback()

	rec, err := scanRecord(tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM outstanding_records WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		logger.ExitMethod("outstandingRepository.WithinRecord", "id", id, "found", false)
		return repository.ErrNotFound
	}
	if err != nil {
		logger.ExitMethodWithError("outstandingRepository.WithinRecord", err, "id", id)
		return classify(err)
	}

	if err := fn(&recordTx{tx: tx, rec: *rec}); err != nil {
		logger.ExitMethodWithError("outstandingRepository.WithinRecord", err, "id", id)
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("outstandingRepository.WithinRecord", err, "id", id, "stage", "commit")
		return classify(err)
	}

	logger.ExitMethod("outstandingRepository.WithinRecord", "id", id)
	return nil
}

type recordTx struct {
	tx  *sql.Tx
	rec domain.OutstandingRecord
}

func (t *recordTx) Record() *domain.OutstandingRecord {
	rec := t.rec
	return &rec
}

func (t *recordTx) History(ctx context.Context) ([]domain.PaymentHistoryEntry, error) {
	entries, err := listHistory(ctx, t.tx, domain.HistoryFilter{OutstandingID: t.rec.ID})
	return entries, classify(err)
}

func (t *recordTx) Save(ctx context.Context, rec *domain.OutstandingRecord) error {
	if rec.ID != t.rec.ID {
		return fmt.Errorf("save of %s inside unit of work for %s", rec.ID, t.rec.ID)
	}

	query := `
		UPDATE outstanding_records SET
			order_id = NULLIF($1, ''),
			invoice_number = NULLIF($2, ''),
			amount = $3,
			cleared_amount = $4,
			pending_amount = $5,
			due_date = $6,
			status = $7,
			notes = $8,
			version = version + 1,
			updated_at = $9
		WHERE id = $10
		RETURNING version, updated_at
	`
	logger.DatabaseCall("update", "outstanding_records", "id", rec.ID)
	err := t.tx.QueryRowContext(ctx, query,
		rec.OrderID, rec.InvoiceNumber, rec.Amount, rec.ClearedAmount, rec.PendingAmount,
		rec.DueDate, rec.Status, rec.Notes, time.Now(), rec.ID,
	).Scan(&rec.Version, &rec.UpdatedAt)
	logger.DatabaseResult("update", 1, err, "id", rec.ID)
	if err != nil {
		return classify(err)
	}
	t.rec = *rec
	return nil
}

func (t *recordTx) AppendHistory(ctx context.Context, entry *domain.PaymentHistoryEntry) error {
	query := `
		INSERT INTO payment_history (
			id, outstanding_id, user_id, amount, payment_method, transaction_id,
			description, payment_date, created_at
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
		RETURNING created_at
	`
	logger.DatabaseCall("insert", "payment_history", "outstandingID", entry.OutstandingID)
	err := t.tx.QueryRowContext(ctx, query,
		entry.ID, entry.OutstandingID, entry.UserID, entry.Amount, entry.PaymentMethod, entry.TransactionID,
		entry.Description, entry.PaymentDate, time.Now(),
	).Scan(&entry.CreatedAt)
	logger.DatabaseResult("insert", 1, err, "entryID", entry.ID)
	return classify(err)
}

func (t *recordTx) DeleteHistory(ctx context.Context, entryID string) error {
	if !isRowID(entryID) {
		return repository.ErrNotFound
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM payment_history WHERE id = $1 AND outstanding_id = $2`, entryID, t.rec.ID)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("delete", n, err, "entryID", entryID)
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *recordTx) DeleteRecord(ctx context.Context) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM payment_history WHERE outstanding_id = $1`, t.rec.ID)
	if err != nil {
		return classify(err)
	}
	removed, _ := res.RowsAffected()

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM outstanding_records WHERE id = $1`, t.rec.ID); err != nil {
		return classify(err)
	}
	logger.DatabaseResult("delete", removed+1, nil, "id", t.rec.ID)
	return nil
}

func listHistory(ctx context.Context, q queryer, filter domain.HistoryFilter) ([]domain.PaymentHistoryEntry, error) {
	query := `SELECT ` + historyColumns + ` FROM payment_history WHERE 1 = 1`
	args := []interface{}{}
	argIndex := 1

	if filter.OutstandingID != "" {
		query += fmt.Sprintf(" AND outstanding_id = $%d", argIndex)
		args = append(args, filter.OutstandingID)
		argIndex++
	}
	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, filter.UserID)
	}
	query += " ORDER BY payment_date ASC, created_at ASC, id ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.PaymentHistoryEntry{}
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// isRowID reports whether id can match a UUID primary key. Anything else
// would fail the cast in Postgres instead of finding no row.
func isRowID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanRecord(row rowScanner) (*domain.OutstandingRecord, error) {
	rec := &domain.OutstandingRecord{}
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.OrderID, &rec.InvoiceNumber,
		&rec.Amount, &rec.ClearedAmount, &rec.PendingAmount, &rec.DueDate, &rec.Status, &rec.Notes,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func scanHistory(row rowScanner) (*domain.PaymentHistoryEntry, error) {
	e := &domain.PaymentHistoryEntry{}
	err := row.Scan(
		&e.ID, &e.OutstandingID, &e.UserID, &e.Amount, &e.PaymentMethod,
		&e.TransactionID, &e.Description, &e.PaymentDate, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}
