package tui

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"

	"bimrag/internal/analysis"
	"bimrag/internal/display"
	"bimrag/internal/domain"
	"bimrag/internal/schema"
	"bimrag/internal/service"
	"bimrag/internal/shell"
)

// Port is the TUI-facing subset of the BIM service.
type Port interface {
	Ask(ctx context.Context, question string, topK int, filter *domain.ElementType) (*service.Answer, error)
	MissingParameters(ctx context.Context, t domain.ElementType) (*domain.MissingParameterReport, error)
	Analyze(ctx context.Context) (*service.Analysis, error)
	Compare(sch *domain.Schema) (*analysis.Comparison, error)
}

// outputMsg carries the result of a dispatched command back to Update.
type outputMsg struct {
	content string
	answer  *service.Answer
	status  string
	err     error
}

// Model is the Bubble Tea model for the interactive shell.
type Model struct {
	ctx      context.Context
	service  Port
	topK     int
	input    textinput.Model
	viewport viewport.Model
	answer   *service.Answer
	content  string
	summary  string
	status   string
	cursor   int
	busy     bool
	ready    bool
}

// New creates a new TUI model. summary is shown under the header.
func New(ctx context.Context, svc Port, topK int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or type help"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		service:  svc,
		topK:     topK,
		input:    ti,
		viewport: vp,
		summary:  summary,
		content:  shell.HelpText,
		status:   "Loaded. Type a question or a command.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and command results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.render())
		return m, nil
	case outputMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + errorText(msg.err)
			m.viewport.SetContent(m.render())
			return m, nil
		}
		m.status = msg.status
		m.answer = msg.answer
		m.content = msg.content
		m.cursor = 0
		m.viewport.SetContent(m.render())
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.busy {
				return m, nil
			}
			cmd, ok := shell.Parse(m.input.Value())
			if !ok {
				return m, nil
			}
			m.input.SetValue("")
			return m.dispatch(cmd)
		case "down":
			if m.answer != nil && len(m.answer.Result.Matches) > 0 {
				m.cursor = (m.cursor + 1) % len(m.answer.Result.Matches)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		case "up":
			if m.answer != nil && len(m.answer.Result.Matches) > 0 {
				n := len(m.answer.Result.Matches)
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.render())
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) dispatch(c shell.Command) (tea.Model, tea.Cmd) {
	switch c.Kind {
	case shell.Exit:
		return m, tea.Quit
	case shell.Help:
		m.answer = nil
		m.content = shell.HelpText
		m.status = "Help"
		m.viewport.SetContent(m.render())
		return m, nil
	case shell.Compare:
		if c.Arg == "" {
			m.status = "Please specify a schema file path."
			return m, nil
		}
	}
	m.busy = true
	m.status = fmt.Sprintf("Running %s...", c.Kind)
	return m, run(m.ctx, m.service, m.topK, c)
}

// run executes a command off the update loop.
func run(ctx context.Context, svc Port, topK int, c shell.Command) tea.Cmd {
	return func() tea.Msg {
		var buf bytes.Buffer
		switch c.Kind {
		case shell.Analyze:
			a, err := svc.Analyze(ctx)
			if err != nil {
				return outputMsg{err: err}
			}
			if err := display.Analysis(&buf, a); err != nil {
				return outputMsg{err: err}
			}
			return outputMsg{content: buf.String(), status: fmt.Sprintf("Analyzed %d element types", len(a.Reports))}
		case shell.Summary:
			a, err := svc.Analyze(ctx)
			if err != nil {
				return outputMsg{err: err}
			}
			if err := display.Summary(&buf, a.Summary); err != nil {
				return outputMsg{err: err}
			}
			return outputMsg{content: buf.String(), status: "Analysis summary"}
		case shell.Compare:
			sch, err := schema.Load(c.Arg)
			if err != nil {
				return outputMsg{err: err}
			}
			cmp, err := svc.Compare(sch)
			if err != nil {
				return outputMsg{err: err}
			}
			if err := display.Comparison(&buf, cmp); err != nil {
				return outputMsg{err: err}
			}
			return outputMsg{content: buf.String(), status: "Compared with " + c.Arg}
		case shell.ParamsFor:
			rep, err := svc.MissingParameters(ctx, c.Type)
			status := fmt.Sprintf("Missing %s parameters", c.Type)
			if errors.Is(err, domain.ErrNoData) && rep != nil {
				status = fmt.Sprintf("No %s records in the data", c.Type)
			} else if err != nil {
				return outputMsg{err: err}
			}
			if err := display.Report(&buf, rep); err != nil {
				return outputMsg{err: err}
			}
			return outputMsg{content: buf.String(), status: status}
		default:
			ans, err := svc.Ask(ctx, c.Arg, topK, nil)
			if err != nil {
				return outputMsg{err: err}
			}
			status := fmt.Sprintf("Results for %q", ans.Query)
			if ans.Degraded {
				status += " (answer generation failed, showing retrieved results)"
			}
			return outputMsg{answer: ans, status: status}
		}
	}
}

// View renders the TUI layout and current output.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("BIM RAG Shell")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) render() string {
	if m.answer == nil {
		return m.content
	}
	width := max(20, m.viewport.Width-4)
	text := lipgloss.NewStyle().Width(width).Render(m.answer.Text)
	if m.answer.Report != nil {
		var buf bytes.Buffer
		if err := display.Report(&buf, m.answer.Report); err == nil {
			return text + "\n\n" + buf.String()
		}
		return text
	}
	matches := m.answer.Result.Matches
	if len(matches) == 0 {
		return text
	}
	r := matches[m.cursor]
	title := fmt.Sprintf("Source %d/%d  %s %s  score=%.3f  (up/down to browse)",
		m.cursor+1, len(matches), r.Record.Type, r.Record.GlobalID, r.Score)
	return text + "\n\n" + title + "\n" + highlightFields(r.Record, m.answer.Result.Query)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	wordRe         = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

// highlightFields lists the record's non-empty parameters one per line and
// highlights those sharing a word with the query.
func highlightFields(r *domain.ElementRecord, query string) string {
	qTokens := toTokenSet(query)
	var lines []string
	for _, f := range r.Params.Fields() {
		if f.Value.Empty() {
			continue
		}
		line := fmt.Sprintf("%s: %s", f.Name, strings.TrimSpace(f.Value.Text))
		if tokenOverlapScore(qTokens, splitCamel(string(f.Name))+" "+f.Value.Text) > 0 {
			line = highlightStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return r.Text
	}
	return strings.Join(lines, "\n")
}

// splitCamel turns "FireRating" into "Fire Rating".
func splitCamel(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toTokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, text string) int {
	score := 0
	tokens := wordRe.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}

// errorText flattens an error and its hints into one status line.
func errorText(err error) string {
	msg := err.Error()
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		msg += " (" + strings.Join(hints, "; ") + ")"
	}
	return msg
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
