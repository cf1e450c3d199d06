// Package display renders reports and answers as terminal tables.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"

	"bimrag/internal/analysis"
	"bimrag/internal/domain"
	"bimrag/internal/service"
)

func table(w io.Writer, data pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "render table")
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func title(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintln(w, pterm.Bold.Sprint(fmt.Sprintf(format, args...)))
	return err
}

func names(in []domain.ParameterName) string {
	if len(in) == 0 {
		return "-"
	}
	out := make([]string, len(in))
	for i, n := range in {
		out[i] = string(n)
	}
	return strings.Join(out, ", ")
}

func percent(r float64) string { return fmt.Sprintf("%.1f%%", r*100) }

// Counts prints records per element type.
func Counts(w io.Writer, counts []domain.TypeCount) error {
	data := pterm.TableData{{"Element type", "Records"}}
	total := 0
	for _, c := range counts {
		data = append(data, []string{string(c.Type), fmt.Sprint(c.Count)})
		total += c.Count
	}
	data = append(data, []string{"total", fmt.Sprint(total)})
	return table(w, data)
}

// Report prints one missing-parameter report.
func Report(w io.Writer, r *domain.MissingParameterReport) error {
	if err := title(w, "Missing %s parameters (%d records, %d incomplete)",
		r.Type, r.TotalRecords, r.RecordsMissingRequired()); err != nil {
		return err
	}
	data := pterm.TableData{{"Parameter", "Kind", "Missing", "Of"}}
	for _, c := range r.RequiredMissing {
		data = append(data, []string{string(c.Name), "required", fmt.Sprint(c.Count), fmt.Sprint(r.TotalRecords)})
	}
	for _, c := range r.OptionalMissing {
		data = append(data, []string{string(c.Name), "optional", fmt.Sprint(c.Count), fmt.Sprint(r.TotalRecords)})
	}
	if err := table(w, data); err != nil {
		return err
	}

	var gaps pterm.TableData
	for _, g := range r.Records {
		if len(g.MissingRequired) > 0 {
			gaps = append(gaps, []string{g.GlobalID, names(g.MissingRequired)})
		}
	}
	if len(gaps) == 0 {
		return nil
	}
	return table(w, append(pterm.TableData{{"GlobalId", "Missing required"}}, gaps...))
}

// Analysis prints the per-type overview followed by the summary.
func Analysis(w io.Writer, a *service.Analysis) error {
	data := pterm.TableData{{"Element type", "Records", "Required", "Incomplete records"}}
	for _, r := range a.Reports {
		data = append(data, []string{
			string(r.Type), fmt.Sprint(r.TotalRecords), fmt.Sprint(r.RequiredParameters), fmt.Sprint(r.RecordsMissingRequired()),
		})
	}
	if err := table(w, data); err != nil {
		return err
	}
	return Summary(w, a.Summary)
}

// Summary prints an analysis summary.
func Summary(w io.Writer, s domain.AnalysisSummary) error {
	if err := title(w, "Analysis summary"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Records analyzed: %d\nRecords missing required parameters: %d\n",
		s.TotalRecords, s.RecordsMissingRequired); err != nil {
		return err
	}
	if len(s.TopMissing) > 0 {
		data := pterm.TableData{{"Most missing parameter", "Missing"}}
		for _, c := range s.TopMissing {
			data = append(data, []string{string(c.Name), fmt.Sprint(c.Count)})
		}
		if err := table(w, data); err != nil {
			return err
		}
	}
	data := pterm.TableData{{"Element type", "Completeness"}}
	for _, c := range s.Completeness {
		data = append(data, []string{string(c.Type), percent(c.Ratio)})
	}
	return table(w, data)
}

// Comparison prints a schema comparison.
func Comparison(w io.Writer, c *analysis.Comparison) error {
	if err := title(w, "Schema comparison (fill threshold %s)", percent(c.Threshold)); err != nil {
		return err
	}
	data := pterm.TableData{{"Element type", "Missing from data", "Not in schema", "Low fill required"}}
	for _, t := range c.Types {
		low := make([]string, len(t.LowFillRequired))
		for i, l := range t.LowFillRequired {
			low[i] = fmt.Sprintf("%s (%s)", l.Name, percent(l.FillRate))
		}
		lowText := strings.Join(low, ", ")
		if lowText == "" {
			lowText = "-"
		}
		data = append(data, []string{string(t.Type), names(t.Missing), names(t.Extra), lowText})
	}
	if err := table(w, data); err != nil {
		return err
	}
	if len(c.WithoutData) > 0 {
		types := make([]string, len(c.WithoutData))
		for i, t := range c.WithoutData {
			types[i] = string(t)
		}
		_, err := fmt.Fprintf(w, "Schema types without data: %s\n", strings.Join(types, ", "))
		return err
	}
	return nil
}

// Profiles prints the per-type column profiles.
func Profiles(w io.Writer, profiles []analysis.TypeProfile) error {
	for _, p := range profiles {
		if err := title(w, "%s (%d records)", p.Type, p.Records); err != nil {
			return err
		}
		data := pterm.TableData{{"Parameter", "Data type", "Nulls", "Unique", "Fill rate"}}
		for _, c := range p.Columns {
			data = append(data, []string{
				string(c.Name), c.DataType, fmt.Sprintf("%d (%.1f%%)", c.NullCount, c.NullPercent), fmt.Sprint(c.UniqueCount), percent(c.FillRate),
			})
		}
		if err := table(w, data); err != nil {
			return err
		}
	}
	return nil
}

// Answer prints the composed answer and its sources.
func Answer(w io.Writer, a *service.Answer) error {
	if a.Degraded && a.GenerationErr != nil {
		if _, err := fmt.Fprintln(w, pterm.Warning.Sprintf("answer generation failed (%v); showing retrieved results", a.GenerationErr)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, pterm.DefaultBox.WithTitle("Answer").Sprint(a.Text)); err != nil {
		return err
	}
	if a.Report != nil {
		return Report(w, a.Report)
	}
	return Matches(w, a.Result)
}

// Matches prints ranked query matches.
func Matches(w io.Writer, r domain.QueryResult) error {
	if len(r.Matches) == 0 {
		_, err := fmt.Fprintln(w, "No matching elements.")
		return err
	}
	data := pterm.TableData{{"#", "Score", "Type", "GlobalId", "Name"}}
	for i, m := range r.Matches {
		name, _ := m.Record.Params.Get("Name")
		data = append(data, []string{
			fmt.Sprint(i + 1), fmt.Sprintf("%.3f", m.Score), string(m.Record.Type), m.Record.GlobalID, name.Text,
		})
	}
	return table(w, data)
}
