// Package store holds the in-process element record set that the query and
// validation engines read from.
package store

import (
	"bimrag/internal/domain"
)

// Store is an ordered collection of element records. It is filled once by
// ingestion or loading and read-only afterwards, so reads take no locks.
type Store struct {
	records   []domain.ElementRecord
	byID      map[string]int
	dimension int
}

// New builds a store from records, keeping their order. It rejects empty or
// duplicate GlobalIDs and embeddings of differing length.
func New(records []domain.ElementRecord) (*Store, error) {
	s := &Store{byID: make(map[string]int, len(records))}
	for i := range records {
		if err := s.add(records[i]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) add(r domain.ElementRecord) error {
	if r.GlobalID == "" {
		return domain.NewInvalidArgumentError("record %d has an empty GlobalId", len(s.records))
	}
	if _, dup := s.byID[r.GlobalID]; dup {
		return domain.NewInvalidArgumentError("duplicate GlobalId %q", r.GlobalID)
	}
	if len(s.records) == 0 {
		s.dimension = len(r.Embedding)
	} else if len(r.Embedding) != s.dimension {
		return domain.NewInvalidArgumentError("record %q has embedding length %d, store uses %d",
			r.GlobalID, len(r.Embedding), s.dimension)
	}
	s.byID[r.GlobalID] = len(s.records)
	s.records = append(s.records, r)
	return nil
}

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }

// Dimension returns the common embedding length, 0 for an empty store.
func (s *Store) Dimension() int { return s.dimension }

// Records returns the records in store order. Callers must not modify them.
func (s *Store) Records() []domain.ElementRecord { return s.records }

// At returns a pointer to the i-th record.
func (s *Store) At(i int) *domain.ElementRecord { return &s.records[i] }

// Get looks a record up by GlobalID.
func (s *Store) Get(globalID string) (*domain.ElementRecord, bool) {
	i, ok := s.byID[globalID]
	if !ok {
		return nil, false
	}
	return &s.records[i], true
}

// ByType returns pointers to the records of type t in store order.
func (s *Store) ByType(t domain.ElementType) []*domain.ElementRecord {
	var out []*domain.ElementRecord
	for i := range s.records {
		if s.records[i].Type == t {
			out = append(out, &s.records[i])
		}
	}
	return out
}

// Texts returns the canonical texts in store order.
func (s *Store) Texts() []string {
	out := make([]string, len(s.records))
	for i := range s.records {
		out[i] = s.records[i].Text
	}
	return out
}

// Counts tallies records per element type.
func (s *Store) Counts() []domain.TypeCount {
	return domain.CountByType(s.records)
}
