package testkit

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"loanaudit/domain/core"
	"loanaudit/domain/run"
	"loanaudit/ports"
)

// RNGAdapter implements the RNGPort interface with math/rand sources
type RNGAdapter struct{}

var _ ports.RNGPort = (*RNGAdapter)(nil)

// SeededStream creates a deterministic random number generator for a named operation
func (r *RNGAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(seed)), nil
}

// InMemoryRunRepository implements AuditRunRepository with in-memory storage
type InMemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[core.RunID]run.AuditRun
}

var _ ports.AuditRunRepository = (*InMemoryRunRepository)(nil)

func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{runs: make(map[core.RunID]run.AuditRun)}
}

func (s *InMemoryRunRepository) Save(ctx context.Context, r *run.AuditRun) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("audit run has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = *r
	return nil
}

func (s *InMemoryRunRepository) Get(ctx context.Context, id core.RunID) (*run.AuditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	return &r, nil
}

// List returns runs newest first
func (s *InMemoryRunRepository) List(ctx context.Context, filter run.Filter) ([]run.AuditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]run.AuditRun, 0, len(s.runs))
	for _, r := range s.runs {
		if filter.Stage != "" && r.Stage != filter.Stage {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
