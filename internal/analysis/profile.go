package analysis

import (
	"sort"
	"strconv"
	"strings"

	"bimrag/internal/domain"
)

// ColumnProfile describes one parameter column of an element type.
type ColumnProfile struct {
	Name        domain.ParameterName `json:"name"`
	DataType    string               `json:"data_type"`
	NullCount   int                  `json:"null_count"`
	NullPercent float64              `json:"null_percent"`
	UniqueCount int                  `json:"unique_count"`
	// FillRate is the share of records with a non-empty value, in [0,1].
	FillRate float64 `json:"fill_rate"`
}

// TypeProfile describes the observed parameters of one element type.
type TypeProfile struct {
	Type    domain.ElementType `json:"type"`
	Records int                `json:"records"`
	Columns []ColumnProfile    `json:"columns"`
}

// Column returns the profile of a column.
func (p TypeProfile) Column(name domain.ParameterName) (ColumnProfile, bool) {
	for _, c := range p.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnProfile{}, false
}

// Profile computes per-type column statistics. Columns appear in first-seen
// order; a record without a column counts as a null for it.
func Profile(records []domain.ElementRecord) []TypeProfile {
	counts := domain.CountByType(records)
	out := make([]TypeProfile, 0, len(counts))
	for _, tc := range counts {
		out = append(out, profileType(records, tc.Type, tc.Count))
	}
	return out
}

func profileType(records []domain.ElementRecord, t domain.ElementType, n int) TypeProfile {
	type acc struct {
		filled int
		unique map[string]struct{}
		kinds  map[string]struct{}
	}
	var order []domain.ParameterName
	cols := make(map[domain.ParameterName]*acc)
	for i := range records {
		if records[i].Type != t {
			continue
		}
		for _, f := range records[i].Params.Fields() {
			a, ok := cols[f.Name]
			if !ok {
				a = &acc{unique: make(map[string]struct{}), kinds: make(map[string]struct{})}
				cols[f.Name] = a
				order = append(order, f.Name)
			}
			if f.Value.Empty() {
				continue
			}
			a.filled++
			a.unique[f.Value.Text] = struct{}{}
			a.kinds[kindOf(f.Value.Text)] = struct{}{}
		}
	}

	p := TypeProfile{Type: t, Records: n, Columns: make([]ColumnProfile, 0, len(order))}
	for _, name := range order {
		a := cols[name]
		nulls := n - a.filled
		c := ColumnProfile{
			Name:        name,
			DataType:    dataType(a.kinds),
			NullCount:   nulls,
			UniqueCount: len(a.unique),
		}
		if n > 0 {
			c.NullPercent = float64(nulls) / float64(n) * 100
			c.FillRate = float64(a.filled) / float64(n)
		}
		p.Columns = append(p.Columns, c)
	}
	return p
}

func kindOf(s string) string {
	s = strings.TrimSpace(s)
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return "integer"
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return "float"
	}
	if _, err := strconv.ParseBool(s); err == nil {
		return "boolean"
	}
	return "text"
}

func dataType(kinds map[string]struct{}) string {
	switch len(kinds) {
	case 0:
		return "empty"
	case 1:
		for k := range kinds {
			return k
		}
	}
	if _, hasText := kinds["text"]; !hasText {
		if _, hasBool := kinds["boolean"]; !hasBool {
			return "float"
		}
	}
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	return "mixed(" + strings.Join(names, ",") + ")"
}
