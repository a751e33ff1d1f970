package history

import (
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lampbench/internal/config"
	"lampbench/internal/report"
	"lampbench/internal/storage"
)

func archived(id string, p95 float64) *report.RunReport {
	return &report.RunReport{
		RunID:       id,
		GeneratedAt: id,
		Passes:      []config.PassKind{config.PassMemory},
		Aggregated: map[config.PassKind]report.ServiceAggregates{
			config.PassMemory: {
				"go":   {Fixed: report.PhaseAggregate{P95: report.Float(p95)}},
				"node": {Fixed: report.PhaseAggregate{P95: report.Float(p95 * 2)}},
			},
		},
	}
}

func newModel(t *testing.T) Model {
	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Save(archived("run-1", 10)))
	require.NoError(t, store.Save(archived("run-2", 20)))
	return NewModel(store, dir)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_ListsNewestFirst(t *testing.T) {
	m := newModel(t)
	rows := m.Table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "run-2", rows[0][0])
	assert.Equal(t, "2", rows[0][2])
	assert.Equal(t, "go 20.00", rows[0][4])
}

func TestModel_DetailAndBack(t *testing.T) {
	m := newModel(t)

	next, _ := m.Update(key("enter"))
	m = next.(Model)
	require.NotNil(t, m.detail)
	assert.Equal(t, "run-2", m.detail.RunID)
	assert.Contains(t, m.View(), "Run run-2")

	next, _ = m.Update(key("esc"))
	m = next.(Model)
	assert.Nil(t, m.detail)
	assert.Contains(t, m.View(), "Past Runs")
}

func TestModel_Trend(t *testing.T) {
	m := newModel(t)
	assert.Equal(t, []float64{10, 20}, m.trend("run-2", config.PassMemory, "go"))
	assert.Equal(t, []float64{20}, m.trend("run-1", config.PassMemory, "node"))
}

func TestModel_Export(t *testing.T) {
	m := newModel(t)
	next, cmd := m.Update(key("e"))
	m = next.(Model)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.StatusMsg, "Exported")

	data, err := os.ReadFile(filepath.Join(m.ExportDir, "run-2-summary.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Memory Pass Ranking")
}
