package referral

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

type pairKey struct {
	referrerID uuid.UUID
	refereeID  uuid.UUID
}

type cycleKey struct {
	pair  pairKey
	cycle int
}

type balanceKey struct {
	accountID uuid.UUID
	currency  string
}

// MemoryStore is an in-memory Store implementation for tests and local
// development. All operations are safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	earnings []Earning
	cycles   map[cycleKey]struct{}
	balances map[balanceKey]int64
}

// NewMemoryStore creates an empty in-memory referral store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cycles:   make(map[cycleKey]struct{}),
		balances: make(map[balanceKey]int64),
	}
}

func (s *MemoryStore) CountForPair(_ context.Context, referrerID, refereeID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, e := range s.earnings {
		if e.ReferrerID == referrerID && e.RefereeID == refereeID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Append(_ context.Context, e Earning) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := cycleKey{pair: pairKey{e.ReferrerID, e.RefereeID}, cycle: e.CycleIndex}
	if _, exists := s.cycles[k]; exists {
		return ErrDuplicateCycle
	}
	s.cycles[k] = struct{}{}
	s.earnings = append(s.earnings, e)
	return nil
}

func (s *MemoryStore) ListByReferrer(_ context.Context, referrerID uuid.UUID) ([]Earning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Earning
	for _, e := range s.earnings {
		if e.ReferrerID == referrerID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Credit(_ context.Context, accountID uuid.UUID, amount plans.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[balanceKey{accountID, amount.Currency}] += amount.Amount
	return nil
}

func (s *MemoryStore) Balance(_ context.Context, accountID uuid.UUID, currency string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.balances[balanceKey{accountID, currency}], nil
}
