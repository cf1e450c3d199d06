package schema

import (
	"github.com/cockroachdb/errors"

	"bimrag/internal/domain"
)

// Validate diffs the records of type t against the schema entry for t.
//
// A missing schema entry is an error without a report. When no record has
// type t, the zero report is returned together with an error wrapping
// domain.ErrNoData. Tallies follow the schema's parameter order.
func Validate(records []domain.ElementRecord, s *domain.Schema, t domain.ElementType) (*domain.MissingParameterReport, error) {
	def, ok := s.Lookup(t)
	if !ok {
		return nil, domain.NewSchemaNotFoundError(t)
	}
	if err := def.Check(); err != nil {
		return nil, err
	}

	optional := def.Optional()
	report := &domain.MissingParameterReport{
		Type:               t,
		RequiredParameters: len(def.Required),
		RequiredMissing:    zeroCounts(def.Required),
		OptionalMissing:    zeroCounts(optional),
	}

	for i := range records {
		r := &records[i]
		if r.Type != t {
			continue
		}
		report.TotalRecords++
		gap := domain.RecordGap{GlobalID: r.GlobalID}
		for j, p := range def.Required {
			if r.Params.Missing(p) {
				gap.MissingRequired = append(gap.MissingRequired, p)
				report.RequiredMissing[j].Count++
			}
		}
		for j, p := range optional {
			if r.Params.Missing(p) {
				gap.MissingOptional = append(gap.MissingOptional, p)
				report.OptionalMissing[j].Count++
			}
		}
		report.Records = append(report.Records, gap)
	}

	if report.TotalRecords == 0 {
		return report, domain.NewNoDataError(t)
	}
	return report, nil
}

// ValidateAll validates every schema type in document order. Types without
// records yield zero reports rather than errors.
func ValidateAll(records []domain.ElementRecord, s *domain.Schema) ([]*domain.MissingParameterReport, error) {
	types := s.Types()
	out := make([]*domain.MissingParameterReport, 0, len(types))
	for _, t := range types {
		report, err := Validate(records, s, t)
		if err != nil && !errors.Is(err, domain.ErrNoData) {
			return nil, err
		}
		out = append(out, report)
	}
	return out, nil
}

func zeroCounts(names []domain.ParameterName) []domain.ParameterCount {
	out := make([]domain.ParameterCount, len(names))
	for i, n := range names {
		out[i].Name = n
	}
	return out
}
