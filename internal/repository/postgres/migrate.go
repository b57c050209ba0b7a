package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"outstanding-ledger-backend/internal/logger"
)

// schema is idempotent. The CHECK constraints restate 0 <= cleared <= amount
// and pending = amount - cleared.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS outstanding_records (
		id             UUID PRIMARY KEY,
		user_id        VARCHAR(128)  NOT NULL,
		order_id       VARCHAR(128),
		invoice_number VARCHAR(128),
		amount         NUMERIC(14,2) NOT NULL,
		cleared_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		pending_amount NUMERIC(14,2) NOT NULL,
		due_date       DATE,
		status         VARCHAR(16)   NOT NULL DEFAULT 'pending',
		notes          TEXT,
		version        INTEGER       NOT NULL DEFAULT 1,
		created_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		CONSTRAINT chk_outstanding_amount_pos      CHECK (amount > 0),
		CONSTRAINT chk_outstanding_cleared_range   CHECK (cleared_amount >= 0 AND cleared_amount <= amount),
		CONSTRAINT chk_outstanding_pending_derived CHECK (pending_amount = amount - cleared_amount),
		CONSTRAINT chk_outstanding_status          CHECK (status IN ('pending', 'partial', 'overdue', 'cleared'))
	)`,
	`CREATE TABLE IF NOT EXISTS payment_history (
		id             UUID PRIMARY KEY,
		outstanding_id UUID          NOT NULL REFERENCES outstanding_records(id) ON DELETE RESTRICT,
		user_id        VARCHAR(128)  NOT NULL,
		amount         NUMERIC(14,2) NOT NULL,
		payment_method VARCHAR(16)   NOT NULL,
		transaction_id VARCHAR(128),
		description    TEXT,
		payment_date   DATE          NOT NULL,
		created_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		CONSTRAINT chk_payment_history_amount_pos CHECK (amount > 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outstanding_records_user ON outstanding_records (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_outstanding_records_status_due ON outstanding_records (status, due_date)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_history_outstanding ON payment_history (outstanding_id, payment_date)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_history_user ON payment_history (user_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_history_txn
		ON payment_history (outstanding_id, transaction_id) WHERE transaction_id IS NOT NULL`,
}

// Migrate creates the ledger tables and indexes in a single transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	logger.Info("Applying ledger schema", "statements", len(schema))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed on: %s - %w", stmt, err)
		}
	}
	return tx.Commit()
}
