package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type warnedKey struct {
	accountID     uuid.UUID
	thresholdDays int
	periodEnd     time.Time
}

// MemoryStore is an in-memory Store implementation for tests and local
// development. A single mutex serializes all updates, which trivially
// satisfies the per-account single-writer requirement.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]Record
	warned  map[warnedKey]struct{}
}

// NewMemoryStore creates an empty in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]Record),
		warned:  make(map[warnedKey]struct{}),
	}
}

func (s *MemoryStore) Get(_ context.Context, accountID uuid.UUID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) Create(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[r.AccountID]; exists {
		return ErrAlreadyExists
	}
	s.records[r.AccountID] = *r
	return nil
}

func (s *MemoryStore) Update(_ context.Context, accountID uuid.UUID, fn UpdateFunc) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[accountID]
	if !ok {
		return nil, ErrNotFound
	}

	changed, err := fn(&r)
	if err != nil {
		return nil, err
	}
	if changed {
		s.records[accountID] = r
	}
	return &r, nil
}

func (s *MemoryStore) ListDueForExpiry(_ context.Context, now time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, r := range s.records {
		if (r.Status == StatusTrial || r.Status == StatusActive) && r.IsExpiredAt(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListExpiringWithin(_ context.Context, now time.Time, days int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.AddDate(0, 0, days)
	var out []Record
	for _, r := range s.records {
		if r.Status != StatusTrial && r.Status != StatusActive {
			continue
		}
		if r.PeriodEnd == nil {
			continue
		}
		if r.PeriodEnd.After(now) && r.PeriodEnd.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) TryMarkWarned(_ context.Context, accountID uuid.UUID, thresholdDays int, periodEnd time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := warnedKey{accountID: accountID, thresholdDays: thresholdDays, periodEnd: periodEnd.UTC().Truncate(time.Microsecond)}
	if _, exists := s.warned[k]; exists {
		return false, nil
	}
	s.warned[k] = struct{}{}
	return true, nil
}
