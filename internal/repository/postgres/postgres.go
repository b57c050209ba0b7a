package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"outstanding-ledger-backend/internal/domain"
	"outstanding-ledger-backend/internal/logger"
	"outstanding-ledger-backend/internal/repository"
)

type Store struct {
	db *sql.DB
	repository.OutstandingRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                    db,
		OutstandingRepository: NewOutstandingRepository(db),
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Open connects to Postgres and verifies the connection before returning.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Database connection established", "max_open_conns", maxOpenConns)
	return db, nil
}

// Postgres error codes that mean "another transaction got there first".
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"

	codeNumericOverflow = "22003"
)

// classify maps retryable driver errors onto repository.ErrConcurrentUpdate
// and values the columns cannot hold onto a validation error.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%w: %s", repository.ErrConcurrentUpdate, pqErr.Message)
		case codeNumericOverflow:
			return domain.WrapError(domain.KindValidation, err, "amount exceeds the supported range")
		}
	}
	return err
}
