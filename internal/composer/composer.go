// Package composer turns ranked element records or a missing-parameter
// report into the answer text shown to the user.
package composer

import (
	"context"
	"fmt"
	"strings"

	"bimrag/internal/domain"
)

// DisabledNotice opens every extractive answer.
const DisabledNotice = "LLM integration is disabled. Here are the most relevant results:"

// Request carries everything a composer may draw on. Report is set only for
// missing-parameter questions.
type Request struct {
	Query  string
	Result domain.QueryResult
	Report *domain.MissingParameterReport
}

// Composer writes an answer for a request. Implementations never reorder
// Result.Matches.
type Composer interface {
	Name() string
	Compose(ctx context.Context, req Request) (string, error)
}

// Extractive renders the request deterministically without a model.
type Extractive struct{}

func NewExtractive() *Extractive { return &Extractive{} }

func (Extractive) Name() string { return "extractive" }

func (Extractive) Compose(_ context.Context, req Request) (string, error) {
	if req.Report != nil {
		return RenderReport(req.Report), nil
	}
	ctx := FormatContext(req.Result.Matches)
	if ctx == "" {
		return DisabledNotice, nil
	}
	return DisabledNotice + "\n\n" + ctx, nil
}

// FormatContext numbers the matches with their relevance scores.
func FormatContext(matches []domain.ScoredRecord) string {
	parts := make([]string, 0, len(matches))
	for i, m := range matches {
		parts = append(parts, fmt.Sprintf("Document %d (Relevance: %.2f):\n%s", i+1, m.Score, m.Record.Text))
	}
	return strings.Join(parts, "\n\n")
}

// RenderReport writes a plain-text view of a missing-parameter report.
func RenderReport(r *domain.MissingParameterReport) string {
	var b strings.Builder
	missing := r.RecordsMissingRequired()
	if missing == 0 {
		fmt.Fprintf(&b, "No missing required %s parameters were found across %d records.", r.Type, r.TotalRecords)
	} else {
		fmt.Fprintf(&b, "Here are the missing %s parameters based on the analysis (%d of %d records incomplete):",
			r.Type, missing, r.TotalRecords)
	}
	writeCounts(&b, "Required", r.RequiredMissing, r.TotalRecords)
	writeCounts(&b, "Optional", r.OptionalMissing, r.TotalRecords)
	return b.String()
}

func writeCounts(b *strings.Builder, title string, counts []domain.ParameterCount, total int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n%s:", title)
	for _, c := range counts {
		fmt.Fprintf(b, "\n- %s: missing in %d of %d records", c.Name, c.Count, total)
	}
}
