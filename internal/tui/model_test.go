package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bimrag/internal/analysis"
	"bimrag/internal/domain"
	"bimrag/internal/service"
)

type fakePort struct {
	asked    []string
	compared *domain.Schema
	askErr   error
}

func (f *fakePort) Ask(_ context.Context, q string, topK int, _ *domain.ElementType) (*service.Answer, error) {
	f.asked = append(f.asked, q)
	if f.askErr != nil {
		return nil, f.askErr
	}
	rec := &domain.ElementRecord{
		GlobalID: "d1",
		Type:     domain.Door,
		Text:     "ElementType: door GlobalId: d1",
		Params: domain.NewParameters(domain.Door,
			domain.Field{Name: "Name", Value: domain.StringValue("Entrance Door")},
			domain.Field{Name: "FireRating", Value: domain.StringValue("EI30")},
		),
	}
	return &service.Answer{
		Query:  q,
		Text:   "The entrance door is rated EI30.",
		Result: domain.QueryResult{Query: q, Matches: []domain.ScoredRecord{{Record: rec, Score: 0.8}, {Record: rec, Score: 0.4}}},
	}, nil
}

func (f *fakePort) MissingParameters(_ context.Context, t domain.ElementType) (*domain.MissingParameterReport, error) {
	rep := &domain.MissingParameterReport{Type: t, RequiredMissing: []domain.ParameterCount{{Name: "Thickness"}}}
	if t == domain.Slab {
		return rep, domain.NewNoDataError(t)
	}
	rep.TotalRecords = 4
	return rep, nil
}

func (f *fakePort) Analyze(context.Context) (*service.Analysis, error) {
	return &service.Analysis{Summary: domain.AnalysisSummary{TotalRecords: 9}}, nil
}

func (f *fakePort) Compare(sch *domain.Schema) (*analysis.Comparison, error) {
	f.compared = sch
	return &analysis.Comparison{Threshold: 0.9}, nil
}

func sized(t *testing.T, port Port) Model {
	t.Helper()
	m := New(context.Background(), port, 5, "7 elements loaded")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

// submit types input, presses enter and runs the resulting command.
func submit(t *testing.T, m Model, input string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(input)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil {
		return m, nil
	}
	msg := cmd()
	if out, ok := msg.(outputMsg); ok {
		next, cmd = m.Update(out)
		return next.(Model), cmd
	}
	return m, cmd
}

func TestQueryShowsAnswerAndSources(t *testing.T) {
	port := &fakePort{}
	m, _ := submit(t, sized(t, port), "entrance fire rating")

	assert.Equal(t, []string{"entrance fire rating"}, port.asked)
	view := m.View()
	assert.Contains(t, view, "The entrance door is rated EI30.")
	assert.Contains(t, view, "Source 1/2")
	assert.Contains(t, view, "FireRating: EI30")
	assert.Empty(t, m.input.Value())

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Contains(t, next.(Model).View(), "Source 2/2")
	next, _ = next.(Model).Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Contains(t, next.(Model).View(), "Source 1/2", "cursor wraps")
}

func TestQueryErrorShowsHint(t *testing.T) {
	port := &fakePort{askErr: errors.WithHint(errors.New("no element records loaded"), "run convert")}
	m, _ := submit(t, sized(t, port), "doors")
	assert.Contains(t, m.View(), "Error: no element records loaded (run convert)")
}

func TestParamsCommand(t *testing.T) {
	m, _ := submit(t, sized(t, &fakePort{}), "wall parameters")
	assert.Contains(t, m.View(), "Missing wall parameters")

	m, _ = submit(t, m, "slab parameters")
	assert.Contains(t, m.View(), "No slab records in the data")
}

func TestSummaryCommand(t *testing.T) {
	m, _ := submit(t, sized(t, &fakePort{}), "analysis summary")
	assert.Contains(t, m.View(), "Records analyzed: 9")
}

func TestCompareCommand(t *testing.T) {
	port := &fakePort{}
	m, cmd := submit(t, sized(t, port), "compare")
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Please specify a schema file path.")

	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"door": {"parameters": ["FireRating"], "required_parameters": ["FireRating"]}}`), 0o644))
	m, _ = submit(t, m, "compare "+path)
	require.NotNil(t, port.compared)
	assert.Equal(t, []domain.ElementType{domain.Door}, port.compared.Types())
	assert.Contains(t, m.View(), "Schema comparison")
}

func TestExitQuits(t *testing.T) {
	m := sized(t, &fakePort{})
	m.input.SetValue("quit")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
