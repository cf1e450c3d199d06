package memory

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"bimrag/internal/domain"
	"bimrag/internal/vectorstore"
)

// Storage keeps records in process memory. Nothing survives a restart; it
// backs tests and one-shot runs.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   []domain.ElementRecord
	index     map[string]int
}

func NewStorage() *Storage { return &Storage{index: make(map[string]int)} }

func (s *Storage) Name() string { return "memory" }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.records = nil
	s.index = make(map[string]int)
	return nil
}

// Upsert replaces records with a known GlobalID in place and appends the rest.
func (s *Storage) Upsert(_ context.Context, records []domain.ElementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return errors.New("memory storage not initialized")
	}
	if err := vectorstore.CheckDimension(records, s.dimension); err != nil {
		return err
	}
	for _, r := range records {
		r.Embedding = append([]float64(nil), r.Embedding...)
		if i, ok := s.index[r.GlobalID]; ok {
			s.records[i] = r
			continue
		}
		s.index[r.GlobalID] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

func (s *Storage) Load(_ context.Context) ([]domain.ElementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ElementRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.index = make(map[string]int)
	return nil
}

func (s *Storage) Close() error { return nil }
