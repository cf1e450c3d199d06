package analysis

import (
	"fmt"
	"sort"

	"bimrag/internal/domain"
)

// LowFill is a required parameter whose fill rate is under the threshold.
type LowFill struct {
	Name     domain.ParameterName `json:"name"`
	FillRate float64              `json:"fill_rate"`
}

// TypeComparison is the schema-versus-data diff of one element type.
type TypeComparison struct {
	Type domain.ElementType `json:"type"`
	// Missing are schema parameters no record carries as a column.
	Missing []domain.ParameterName `json:"missing"`
	// Extra are observed columns the schema does not declare.
	Extra           []domain.ParameterName `json:"extra"`
	Common          []domain.ParameterName `json:"common"`
	LowFillRequired []LowFill              `json:"low_fill_required"`
}

// Comparison covers every schema type. Types the schema names but the data
// lacks are listed in WithoutData.
type Comparison struct {
	Types       []TypeComparison     `json:"types"`
	WithoutData []domain.ElementType `json:"without_data"`
	Threshold   float64              `json:"threshold"`
}

// Compare diffs observed columns against the schema. Parameter lists are
// sorted by name; low-fill entries are sorted by ascending fill rate.
func Compare(profiles []TypeProfile, s *domain.Schema, threshold float64) Comparison {
	byType := make(map[domain.ElementType]TypeProfile, len(profiles))
	for _, p := range profiles {
		byType[p.Type] = p
	}

	out := Comparison{Threshold: threshold}
	for _, def := range s.Definitions() {
		p, ok := byType[def.Type]
		if !ok {
			out.WithoutData = append(out.WithoutData, def.Type)
			continue
		}
		observed := make(map[domain.ParameterName]struct{}, len(p.Columns))
		for _, c := range p.Columns {
			observed[c.Name] = struct{}{}
		}
		declared := make(map[domain.ParameterName]struct{}, len(def.Parameters))
		tc := TypeComparison{Type: def.Type}
		for _, name := range def.Parameters {
			declared[name] = struct{}{}
			if _, ok := observed[name]; ok {
				tc.Common = append(tc.Common, name)
			} else {
				tc.Missing = append(tc.Missing, name)
			}
		}
		for _, c := range p.Columns {
			if _, ok := declared[c.Name]; !ok {
				tc.Extra = append(tc.Extra, c.Name)
			}
		}
		for _, name := range def.Required {
			c, ok := p.Column(name)
			if ok && c.FillRate < threshold {
				tc.LowFillRequired = append(tc.LowFillRequired, LowFill{Name: name, FillRate: c.FillRate})
			}
		}
		sortNames(tc.Missing)
		sortNames(tc.Extra)
		sortNames(tc.Common)
		sort.SliceStable(tc.LowFillRequired, func(i, j int) bool {
			return tc.LowFillRequired[i].FillRate < tc.LowFillRequired[j].FillRate
		})
		out.Types = append(out.Types, tc)
	}
	return out
}

// DeriveSchema builds an expected schema from observed data: every column
// becomes a parameter and columns filled above threshold become required.
func DeriveSchema(profiles []TypeProfile, threshold float64) (*domain.Schema, error) {
	defs := make([]domain.TypeSchema, 0, len(profiles))
	for _, p := range profiles {
		def := domain.TypeSchema{
			Type:        p.Type,
			Parameters:  make([]domain.ParameterName, 0, len(p.Columns)),
			Required:    []domain.ParameterName{},
			Description: fmt.Sprintf("Expected schema for %s elements", p.Type),
		}
		for _, c := range p.Columns {
			def.Parameters = append(def.Parameters, c.Name)
			if c.FillRate > threshold {
				def.Required = append(def.Required, c.Name)
			}
		}
		defs = append(defs, def)
	}
	return domain.NewSchema(defs...)
}

func sortNames(names []domain.ParameterName) {
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
}
