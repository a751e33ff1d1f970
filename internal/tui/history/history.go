// Package history is the interactive browser over archived benchmark runs.
package history

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lampbench/internal/cli"
	"lampbench/internal/config"
	"lampbench/internal/report"
	"lampbench/internal/storage"
	"lampbench/internal/summary"
	"lampbench/internal/tui/components"
	"lampbench/internal/tui/styles"
)

type ClearStatusMsg struct{}

func clearStatusCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(_ time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}

// Model lists archived runs and shows the rankings of the selected one.
type Model struct {
	Store *storage.Store
	Table table.Model
	// ExportDir receives summaries exported with the e key.
	ExportDir string

	runs    []report.RunReport
	detail  *report.RunReport
	content viewport.Model

	Width  int
	Height int

	StatusMsg string
	Err       error
}

func NewModel(store *storage.Store, exportDir string) Model {
	columns := []table.Column{
		{Title: "Run", Width: 26},
		{Title: "Passes", Width: 12},
		{Title: "Services", Width: 10},
		{Title: "Iterations", Width: 10},
		{Title: "Best p95 (ms)", Width: 22},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.ColorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.ColorPrimary)
	s.Selected = s.Selected.
		Foreground(styles.ColorBg).
		Background(styles.ColorPrimary).
		Bold(true)
	t.SetStyles(s)

	m := Model{
		Store:     store,
		Table:     t,
		ExportDir: exportDir,
		content:   viewport.New(80, 20),
	}
	m.Refresh()
	return m
}

// Refresh reloads the archive, newest run first.
func (m *Model) Refresh() {
	if m.Store == nil {
		return
	}
	m.runs, m.Err = m.Store.List()

	rows := make([]table.Row, len(m.runs))
	for i, r := range m.runs {
		rows[i] = table.Row{
			r.RunID,
			joinPasses(r.Passes),
			fmt.Sprintf("%d", serviceCount(&r)),
			fmt.Sprintf("%d", r.Config.IterationsPerPass),
			best(&r),
		}
	}
	m.Table.SetRows(rows)
}

func joinPasses(passes []config.PassKind) string {
	names := make([]string, len(passes))
	for i, p := range passes {
		names[i] = string(p)
	}
	return strings.Join(names, ",")
}

func serviceCount(r *report.RunReport) int {
	seen := map[string]bool{}
	for _, aggs := range r.Aggregated {
		for name := range aggs {
			seen[name] = true
		}
	}
	return len(seen)
}

// best names the fastest service of the first pass.
func best(r *report.RunReport) string {
	for _, pass := range r.Passes {
		rows := summary.Ranking(r.Aggregated[pass])
		if len(rows) == 0 || rows[0].Fixed.P95 == nil {
			continue
		}
		return fmt.Sprintf("%s %s", rows[0].Service, summary.FormatNumber(*rows[0].Fixed.P95, 2))
	}
	return "n/a"
}

func (m Model) Selected() *report.RunReport {
	idx := m.Table.Cursor()
	if idx < 0 || idx >= len(m.runs) {
		return nil
	}
	return &m.runs[idx]
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetWidth(msg.Width - 4)
		m.Table.SetHeight(max(3, msg.Height-8))
		m.content.Width = msg.Width - 4
		m.content.Height = max(3, msg.Height-6)

	case ClearStatusMsg:
		m.StatusMsg = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			m.detail = nil
			return m, nil
		case "r":
			m.Refresh()
			return m, nil
		case "enter":
			if m.detail == nil {
				if sel := m.Selected(); sel != nil {
					m.detail = sel
					m.content.SetContent(m.renderDetail(sel))
					m.content.GotoTop()
				}
				return m, nil
			}
		case "e":
			sel := m.detail
			if sel == nil {
				sel = m.Selected()
			}
			if sel == nil {
				return m, nil
			}
			path := filepath.Join(m.ExportDir, sel.RunID+"-summary.md")
			if err := summary.WriteFile(path, sel); err != nil {
				m.StatusMsg = "❌ Export failed: " + err.Error()
			} else {
				m.StatusMsg = "✅ Exported " + path
			}
			return m, clearStatusCmd()
		}
	}

	if m.detail != nil {
		m.content, cmd = m.content.Update(msg)
		return m, cmd
	}
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

// renderDetail shows each pass ranking of r followed by the fixed p95 of
// every service across the archived runs up to r.
func (m Model) renderDetail(r *report.RunReport) string {
	var b strings.Builder
	b.WriteString(styles.Subtle.Render("Generated " + r.GeneratedAt))
	b.WriteString("\n")
	cli.PrintRanking(&b, r)

	for _, pass := range r.Passes {
		aggs := r.Aggregated[pass]
		if len(aggs) == 0 {
			continue
		}
		names := make([]string, 0, len(aggs))
		for name := range aggs {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString("\n")
		b.WriteString(styles.Title.Render(pass.Title() + " p95 trend"))
		b.WriteString("\n")
		for _, name := range names {
			line := components.NewSparkline(30, fmt.Sprintf("%-16s", name), styles.Value)
			for _, v := range m.trend(r.RunID, pass, name) {
				line.Add(v)
			}
			b.WriteString(line.View())
			b.WriteString("\n")
		}
	}
	return b.String()
}

// trend returns the fixed p95 of service in pass for every archived run up
// to and including runID, oldest first.
func (m Model) trend(runID string, pass config.PassKind, service string) []float64 {
	var out []float64
	for i := len(m.runs) - 1; i >= 0; i-- {
		r := m.runs[i]
		if r.RunID > runID {
			break
		}
		if agg, ok := r.Aggregated[pass][service]; ok {
			out = append(out, report.Value(agg.Fixed.P95))
		}
	}
	return out
}

func (m Model) View() string {
	s := strings.Builder{}
	if m.detail != nil {
		s.WriteString(styles.Title.Render("📜 Run " + m.detail.RunID))
		s.WriteString("\n")
		s.WriteString(m.content.View())
		s.WriteString("\n")
		s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			styles.RenderKey("esc", "back"), "  ",
			styles.RenderKey("e", "export summary"), "  ",
			styles.RenderKey("q", "quit")))
	} else {
		s.WriteString(styles.Title.Render("📜 Past Runs"))
		s.WriteString("\n\n")
		switch {
		case m.Err != nil:
			s.WriteString(styles.Error.Render(m.Err.Error()))
		case len(m.Table.Rows()) == 0:
			s.WriteString(styles.Subtle.Render("No archived runs.\nRun a benchmark with --archive to record one."))
		default:
			s.WriteString(styles.Box.Render(m.Table.View()))
		}
		s.WriteString("\n\n")
		s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			styles.RenderKey("enter", "details"), "  ",
			styles.RenderKey("e", "export summary"), "  ",
			styles.RenderKey("r", "reload"), "  ",
			styles.RenderKey("q", "quit")))
	}
	if m.StatusMsg != "" {
		s.WriteString("\n")
		s.WriteString(styles.Warn.Render(m.StatusMsg))
	}
	return s.String()
}
