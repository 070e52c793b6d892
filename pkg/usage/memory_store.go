package usage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

type counterKey struct {
	accountID   uuid.UUID
	feature     plans.FeatureType
	periodStart time.Time
}

// MemoryStore is an in-memory Store implementation for tests and local
// development. All operations are safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[counterKey]Counter
}

// NewMemoryStore creates an empty in-memory usage store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[counterKey]Counter)}
}

func (s *MemoryStore) Find(_ context.Context, accountID uuid.UUID, feature plans.FeatureType, periodStart time.Time) (*Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key(accountID, feature, periodStart)]
	if !ok {
		return nil, ErrCounterNotFound
	}
	return &c, nil
}

func (s *MemoryStore) Increment(_ context.Context, c Counter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(c.AccountID, c.Feature, c.PeriodStart)
	existing, ok := s.counters[k]
	if !ok {
		c.Used = 1
		s.counters[k] = c
		return nil
	}
	existing.Used++
	s.counters[k] = existing
	return nil
}

func (s *MemoryStore) CreateBatch(_ context.Context, counters []Counter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range counters {
		k := key(c.AccountID, c.Feature, c.PeriodStart)
		if _, exists := s.counters[k]; exists {
			continue
		}
		s.counters[k] = c
	}
	return nil
}

func (s *MemoryStore) ListByAccount(_ context.Context, accountID uuid.UUID) ([]Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Counter
	for k, c := range s.counters {
		if k.accountID == accountID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PeriodStart.After(out[j].PeriodStart)
	})
	return out, nil
}

func key(accountID uuid.UUID, feature plans.FeatureType, periodStart time.Time) counterKey {
	return counterKey{
		accountID:   accountID,
		feature:     feature,
		periodStart: periodStart.UTC().Truncate(time.Microsecond),
	}
}
