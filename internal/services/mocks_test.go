package services

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/tokensim/backend/internal/models"
	"github.com/tokensim/backend/internal/storage"
)

type MockTradePublisher struct {
	mock.Mock
}

func (m *MockTradePublisher) PublishTrade(ctx context.Context, txn *models.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

// flakyStore fails the first conflicts units of work with storage.ErrConflict,
// or every unit of work with failure when it is set.
type flakyStore struct {
	*storage.MemoryStore

	mu        sync.Mutex
	conflicts int
	failure   error
	calls     int
}

func (s *flakyStore) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	s.calls++
	failure := s.failure
	conflict := s.conflicts > 0
	if conflict {
		s.conflicts--
	}
	s.mu.Unlock()

	if failure != nil {
		return failure
	}
	if conflict {
		return storage.ErrConflict
	}
	return s.MemoryStore.WithTx(ctx, fn)
}

func (s *flakyStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func counterValue(registry *prometheus.Registry, name string, labels map[string]string) float64 {
	families, err := registry.Gather()
	if err != nil {
		return -1
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	nextMetric:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue nextMetric
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
