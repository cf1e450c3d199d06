package analysis

import (
	"sort"

	"bimrag/internal/domain"
)

// topMissingLimit is how many parameters the summary ranks.
const topMissingLimit = 3

// Summarize merges per-type reports into one cross-type summary. Only
// required-parameter gaps feed the ranking; counts for the same name are
// summed across types.
func Summarize(reports []*domain.MissingParameterReport) domain.AnalysisSummary {
	var sum domain.AnalysisSummary
	totals := make(map[domain.ParameterName]int)

	for _, r := range reports {
		if r == nil {
			continue
		}
		sum.TotalRecords += r.TotalRecords
		sum.RecordsMissingRequired += r.RecordsMissingRequired()

		missing := 0
		for _, c := range r.RequiredMissing {
			totals[c.Name] += c.Count
			missing += c.Count
		}
		sum.Completeness = append(sum.Completeness, domain.TypeCompleteness{
			Type:  r.Type,
			Ratio: completeness(r.TotalRecords, r.RequiredParameters, missing),
		})
	}

	for name, n := range totals {
		if n > 0 {
			sum.TopMissing = append(sum.TopMissing, domain.ParameterCount{Name: name, Count: n})
		}
	}
	sort.Slice(sum.TopMissing, func(i, j int) bool {
		a, b := sum.TopMissing[i], sum.TopMissing[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Name < b.Name
	})
	if len(sum.TopMissing) > topMissingLimit {
		sum.TopMissing = sum.TopMissing[:topMissingLimit]
	}
	return sum
}

func completeness(records, required, missing int) float64 {
	if required == 0 {
		return 1
	}
	if records == 0 {
		return 0
	}
	slots := records * required
	return float64(slots-missing) / float64(slots)
}
