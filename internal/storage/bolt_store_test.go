package storage

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lampbench/internal/config"
	"lampbench/internal/report"
)

func runReport(id string) *report.RunReport {
	return &report.RunReport{
		RunID:       id,
		GeneratedAt: "2025-01-01T00:00:00.000Z",
		Passes:      []config.PassKind{config.PassMemory},
		Aggregated: map[config.PassKind]report.ServiceAggregates{
			config.PassMemory: {"svc": {Fixed: report.PhaseAggregate{P95: report.Float(12.5)}}},
		},
	}
}

func TestStore_SaveListGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.Path())

	for _, id := range []string{"2025-01-02T00-00-00-000Z", "2025-01-01T00-00-00-000Z", "2025-01-03T00-00-00-000Z"} {
		require.NoError(t, s.Save(runReport(id)))
	}

	items, err := s.List()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "2025-01-03T00-00-00-000Z", items[0].RunID)
	assert.Equal(t, "2025-01-01T00-00-00-000Z", items[2].RunID)

	got, err := s.Get("2025-01-02T00-00-00-000Z")
	require.NoError(t, err)
	assert.Equal(t, 12.5, *got.Aggregated[config.PassMemory]["svc"].Fixed.P95)
}

func TestStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(runReport("a")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get("a")
	assert.NoError(t, err)
}

func TestStore_Errors(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Error(t, s.Save(&report.RunReport{}))
}
