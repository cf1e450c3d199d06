package vectorstore

import (
	"context"

	"bimrag/internal/domain"
)

// Storage persists element records together with their embeddings so that a
// later run can rebuild the record store without re-reading the exports.
// Load returns records in the order they were first upserted.
type Storage interface {
	Name() string
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, records []domain.ElementRecord) error
	Load(ctx context.Context) ([]domain.ElementRecord, error)
	Clear(ctx context.Context) error
	Close() error
}
