package fx

import (
	"context"
	"sync"

	id "custodia/pkg/domain"
)

type pair struct {
	from, to id.Currency
}

// StaticSource serves rates from an in-memory table.
type StaticSource struct {
	mu    sync.RWMutex
	rates map[pair]Rate
}

func NewStaticSource() *StaticSource {
	return &StaticSource{rates: make(map[pair]Rate)}
}

// Set publishes the from→to rate.
func (s *StaticSource) Set(from, to id.Currency, rate Rate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[pair{from, to}] = rate
}

func (s *StaticSource) Lookup(_ context.Context, from, to id.Currency) (Rate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rates[pair{from, to}]
	return r, ok, nil
}
