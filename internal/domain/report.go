package domain

// ParameterCount is the number of records missing one parameter.
type ParameterCount struct {
	Name  ParameterName `json:"name"`
	Count int           `json:"count"`
}

// RecordGap lists the parameters one record is missing.
type RecordGap struct {
	GlobalID        string          `json:"global_id"`
	MissingRequired []ParameterName `json:"missing_required"`
	MissingOptional []ParameterName `json:"missing_optional"`
}

// MissingParameterReport is the validation outcome for one element type.
type MissingParameterReport struct {
	Type               ElementType      `json:"type"`
	TotalRecords       int              `json:"total_records"`
	RequiredParameters int              `json:"required_parameters"`
	Records            []RecordGap      `json:"records"`
	RequiredMissing    []ParameterCount `json:"required_missing"`
	OptionalMissing    []ParameterCount `json:"optional_missing"`
}

// RecordsMissingRequired counts records with at least one missing required
// parameter.
func (r *MissingParameterReport) RecordsMissingRequired() int {
	n := 0
	for _, g := range r.Records {
		if len(g.MissingRequired) > 0 {
			n++
		}
	}
	return n
}

// RequiredMissingCount returns the tally for a required parameter.
func (r *MissingParameterReport) RequiredMissingCount(name ParameterName) (int, bool) {
	for _, c := range r.RequiredMissing {
		if c.Name == name {
			return c.Count, true
		}
	}
	return 0, false
}

// OptionalMissingCount returns the tally for an optional parameter.
func (r *MissingParameterReport) OptionalMissingCount(name ParameterName) (int, bool) {
	for _, c := range r.OptionalMissing {
		if c.Name == name {
			return c.Count, true
		}
	}
	return 0, false
}

// TypeCompleteness is the share of required parameter slots that are filled.
type TypeCompleteness struct {
	Type  ElementType `json:"type"`
	Ratio float64     `json:"ratio"`
}

// AnalysisSummary combines missing-parameter reports across element types.
type AnalysisSummary struct {
	TotalRecords           int                `json:"total_records"`
	RecordsMissingRequired int                `json:"records_missing_required"`
	TopMissing             []ParameterCount   `json:"top_missing"`
	Completeness           []TypeCompleteness `json:"completeness"`
}

// ScoredRecord is one ranked match. Record points into the store.
type ScoredRecord struct {
	Record *ElementRecord
	Score  float64
}

// QueryResult is the ranked outcome of one query.
type QueryResult struct {
	// Query is the text that was embedded, after directive stripping.
	Query string
	// Filter is the effective type filter; empty means the whole store.
	Filter  ElementType
	Matches []ScoredRecord
}
