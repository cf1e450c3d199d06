package query

import (
	"context"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"bimrag/internal/domain"
	"bimrag/internal/logger"
	"bimrag/internal/store"
)

// Engine ranks store records against free-text queries.
type Engine struct {
	embedder domain.Embedder
	log      *zap.Logger
}

func NewEngine(embedder domain.Embedder, log *zap.Logger) *Engine {
	return &Engine{
		embedder: embedder,
		log:      logger.OrNop(log).With(zap.String(logger.FieldComponent, "query")),
	}
}

// Query embeds text and returns up to topK records by descending cosine
// similarity. A leading "filter:<type>" directive overrides filter; a nil
// filter ranks the whole store. Ties keep store order. There is no
// similarity threshold: a zero score still ranks.
func (e *Engine) Query(ctx context.Context, text string, s *store.Store, topK int, filter *domain.ElementType) (domain.QueryResult, error) {
	if topK <= 0 {
		return domain.QueryResult{}, domain.NewInvalidArgumentError("top_k must be positive, got %d", topK)
	}
	rest, directive, err := ParseDirective(text)
	if err != nil {
		return domain.QueryResult{}, err
	}
	var effective domain.ElementType
	if directive != "" {
		effective = directive
	} else if filter != nil {
		effective = *filter
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return domain.QueryResult{}, domain.NewInvalidArgumentError("query text is empty")
	}

	candidates := Candidates(s, effective)
	if len(candidates) == 0 {
		return domain.QueryResult{}, domain.NewEmptyCandidateSetError(effective)
	}

	vec, err := e.embedder.Embed(ctx, rest)
	if err != nil {
		return domain.QueryResult{}, err
	}
	if len(vec) != s.Dimension() {
		return domain.QueryResult{}, domain.NewInvalidArgumentError(
			"query embedding has %d dimensions, store has %d", len(vec), s.Dimension())
	}

	matches := make([]domain.ScoredRecord, len(candidates))
	for i, r := range candidates {
		matches[i] = domain.ScoredRecord{Record: r, Score: Cosine(vec, r.Embedding)}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}

	e.log.Debug("ranked query",
		zap.String(logger.FieldQuery, rest),
		zap.String(logger.FieldFilter, string(effective)),
		zap.Int(logger.FieldTopK, topK),
		zap.Int(logger.FieldCount, len(matches)))
	return domain.QueryResult{Query: rest, Filter: effective, Matches: matches}, nil
}

// Candidates returns the records of type t, or every record when t is empty,
// in store order.
func Candidates(s *store.Store, t domain.ElementType) []*domain.ElementRecord {
	if t != "" {
		return s.ByType(t)
	}
	out := make([]*domain.ElementRecord, s.Len())
	for i := range out {
		out[i] = s.At(i)
	}
	return out
}

// Cosine returns dot(a,b)/(|a||b|), or 0 when either vector has zero
// magnitude. Vectors must have equal length.
func Cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
