package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/effectmoe/contract-system/model"
)

// MemoryStore keeps contracts in process memory. It backs demo mode and
// serializes every write behind one lock.
type MemoryStore struct {
	mu           sync.RWMutex
	contracts    map[string]*model.Contract
	order        []string // insertion order, so listings are deterministic
	maxContracts int      // 0 = unlimited
}

// NewMemoryStore creates an empty store that keeps at most maxContracts
// contracts, evicting the oldest first.
func NewMemoryStore(maxContracts int) *MemoryStore {
	if maxContracts < 0 {
		maxContracts = 0
	}
	return &MemoryStore{
		contracts:    make(map[string]*model.Contract),
		maxContracts: maxContracts,
	}
}

func (s *MemoryStore) List(_ context.Context) ([]*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Contract, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.contracts[id].Clone())
	}
	return result, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, ErrContractNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) Insert(_ context.Context, c *model.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.contracts[c.ID]; exists {
		return fmt.Errorf("contract %s already exists", c.ID)
	}
	s.contracts[c.ID] = c.Clone()
	s.order = append(s.order, c.ID)

	s.cleanupIfNeeded()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch ContractPatch, now time.Time) (*model.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, ErrContractNotFound
	}
	updated := c.Clone()
	patch.Apply(updated, now)
	s.contracts[id] = updated
	return updated.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contracts[id]; !ok {
		return false, nil
	}
	delete(s.contracts, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return true, nil
}

func (s *MemoryStore) AppendAudit(_ context.Context, id string, entry model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return ErrContractNotFound
	}
	c.AuditLog = append(c.AuditLog, entry)
	return nil
}

// Count returns the number of contracts in the store
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contracts)
}

// cleanupIfNeeded removes the oldest contracts once the store exceeds
// maxContracts. Must be called with lock held.
func (s *MemoryStore) cleanupIfNeeded() {
	if s.maxContracts <= 0 || len(s.contracts) <= s.maxContracts {
		return
	}

	byAge := slices.Clone(s.order)
	slices.SortStableFunc(byAge, func(a, b string) int {
		return s.contracts[a].CreatedAt.Compare(s.contracts[b].CreatedAt)
	})

	removeCount := len(byAge) - s.maxContracts
	for _, id := range byAge[:removeCount] {
		slog.Info("auto-cleaning old contract",
			"contract_id", id,
			"created_at", s.contracts[id].CreatedAt,
		)
		delete(s.contracts, id)
	}
	s.order = slices.DeleteFunc(s.order, func(v string) bool {
		_, ok := s.contracts[v]
		return !ok
	})
}
