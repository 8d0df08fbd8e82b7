package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/berfenger/gridwatch/internal/core/domain"
	"github.com/berfenger/gridwatch/internal/core/port"
)

// MemoryStore is an in-process time-series store for tests and setups
// without durable storage. Append-only, ordered by timestamp.
type MemoryStore struct {
	mu      sync.RWMutex
	samples []domain.CumulativeEnergySample
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, sample domain.CumulativeEnergySample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.samples); n > 0 && !sample.Timestamp.After(s.samples[n-1].Timestamp) {
		return fmt.Errorf("store: sample at %s is not newer than last stored sample",
			sample.Timestamp.Format(time.RFC3339Nano))
	}
	s.samples = append(s.samples, sample)
	return nil
}

func (s *MemoryStore) Latest(_ context.Context) (*domain.CumulativeEnergySample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.samples) == 0 {
		return nil, nil
	}
	sample := s.samples[len(s.samples)-1]
	return &sample, nil
}

func (s *MemoryStore) Range(_ context.Context, start, end time.Time) ([]domain.CumulativeEnergySample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.CumulativeEnergySample
	for _, sample := range s.samples {
		if !sample.Timestamp.Before(start) && sample.Timestamp.Before(end) {
			out = append(out, sample)
		}
	}
	return out, nil
}

// Len reports the number of stored samples.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// All returns a copy of the stored series.
func (s *MemoryStore) All() []domain.CumulativeEnergySample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CumulativeEnergySample, len(s.samples))
	copy(out, s.samples)
	return out
}

// ensure interface compliance
var _ port.TimeSeriesStore = (*MemoryStore)(nil)
