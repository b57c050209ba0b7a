// Package memory is an in-process Ledger Store used for local runs and tests.
// Units of work are optimistic: a snapshot is taken, writes are staged, and the
// commit fails with repository.ErrConcurrentUpdate if the record's version moved.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"outstanding-ledger-backend/internal/domain"
	"outstanding-ledger-backend/internal/logger"
	"outstanding-ledger-backend/internal/repository"
)

type Store struct {
	mu      sync.RWMutex
	records map[string]domain.OutstandingRecord
	history map[string]domain.PaymentHistoryEntry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]domain.OutstandingRecord),
		history: make(map[string]domain.PaymentHistoryEntry),
		now:     time.Now,
	}
}

var _ repository.OutstandingRepository = (*Store)(nil)

func (s *Store) Create(ctx context.Context, rec *domain.OutstandingRecord) error {
	logger.EnterMethod("memory.Store.Create", "userID", rec.UserID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		err := fmt.Errorf("outstanding record %s already exists", rec.ID)
		logger.ExitMethodWithError("memory.Store.Create", err, "id", rec.ID)
		return err
	}
	now := s.now()
	rec.Version = 1
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.records[rec.ID] = *rec

	logger.ExitMethod("memory.Store.Create", "id", rec.ID)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.OutstandingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (s *Store) List(ctx context.Context, filter domain.OutstandingFilter) ([]domain.OutstandingRecord, error) {
	s.mu.RLock()
	out := make([]domain.OutstandingRecord, 0, len(s.records))
	for _, rec := range s.records {
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.PaymentHistoryEntry, error) {
	s.mu.RLock()
	out := make([]domain.PaymentHistoryEntry, 0)
	for _, e := range s.history {
		if filter.OutstandingID != "" && e.OutstandingID != filter.OutstandingID {
			continue
		}
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		out = append(out, e)
	}
	s.mu.RUnlock()

	sortHistory(out)
	return out, nil
}

func (s *Store) GetHistoryEntry(ctx context.Context, id string) (*domain.PaymentHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.history[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (s *Store) WithinRecord(ctx context.Context, id string, fn func(tx repository.RecordTx) error) error {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return repository.ErrNotFound
	}

	tx := &recordTx{
		store:       s,
		rec:         rec,
		baseVersion: rec.Version,
		deleted:     make(map[string]struct{}),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) commit(tx *recordTx) error {
	if !tx.dirty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[tx.rec.ID]
	if !ok || current.Version != tx.baseVersion {
		logger.Debug("memory store commit lost race", "id", tx.rec.ID, "base_version", tx.baseVersion)
		return repository.ErrConcurrentUpdate
	}

	if tx.deleteRecord {
		for entryID, e := range s.history {
			if e.OutstandingID == tx.rec.ID {
				delete(s.history, entryID)
			}
		}
		delete(s.records, tx.rec.ID)
		return nil
	}

	for entryID := range tx.deleted {
		delete(s.history, entryID)
	}
	for _, e := range tx.appended {
		s.history[e.ID] = e
	}

	rec := tx.rec
	if !tx.saved {
		rec = current
	}
	rec.Version = tx.baseVersion + 1
	s.records[rec.ID] = rec
	return nil
}

type recordTx struct {
	store        *Store
	rec          domain.OutstandingRecord
	baseVersion  int32
	saved        bool
	appended     []domain.PaymentHistoryEntry
	deleted      map[string]struct{}
	deleteRecord bool
}

func (t *recordTx) dirty() bool {
	return t.saved || t.deleteRecord || len(t.appended) > 0 || len(t.deleted) > 0
}

func (t *recordTx) Record() *domain.OutstandingRecord {
	rec := t.rec
	return &rec
}

func (t *recordTx) History(ctx context.Context) ([]domain.PaymentHistoryEntry, error) {
	entries, err := t.store.ListHistory(ctx, domain.HistoryFilter{OutstandingID: t.rec.ID})
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if _, gone := t.deleted[e.ID]; !gone {
			out = append(out, e)
		}
	}
	out = append(out, t.appended...)
	sortHistory(out)
	return out, nil
}

func (t *recordTx) Save(ctx context.Context, rec *domain.OutstandingRecord) error {
	if rec.ID != t.rec.ID {
		return fmt.Errorf("save of %s inside unit of work for %s", rec.ID, t.rec.ID)
	}
	rec.Version = t.baseVersion + 1
	rec.UpdatedAt = t.store.now()
	t.rec = *rec
	t.saved = true
	return nil
}

func (t *recordTx) AppendHistory(ctx context.Context, entry *domain.PaymentHistoryEntry) error {
	if entry.OutstandingID != t.rec.ID {
		return fmt.Errorf("history entry for %s inside unit of work for %s", entry.OutstandingID, t.rec.ID)
	}
	entry.CreatedAt = t.store.now()
	t.appended = append(t.appended, *entry)
	return nil
}

func (t *recordTx) DeleteHistory(ctx context.Context, entryID string) error {
	for i, e := range t.appended {
		if e.ID == entryID {
			t.appended = append(t.appended[:i], t.appended[i+1:]...)
			return nil
		}
	}
	e, err := t.store.GetHistoryEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if e.OutstandingID != t.rec.ID {
		return repository.ErrNotFound
	}
	t.deleted[entryID] = struct{}{}
	return nil
}

func (t *recordTx) DeleteRecord(ctx context.Context) error {
	t.deleteRecord = true
	return nil
}

func sortHistory(entries []domain.PaymentHistoryEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.PaymentDate.Equal(b.PaymentDate) {
			return a.PaymentDate.Before(b.PaymentDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
