package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureLedger_EmptySavesList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_uploads.json")
	var l FailureLedger
	require.NoError(t, l.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	entries, err := LoadLedger(path)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFailureLedger_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_uploads.json")
	var l FailureLedger
	l.Add(2, "Physics", map[string]any{"overview": "x"})
	l.Add(5, "Chemistry", "raw")
	assert.Equal(t, 2, l.Len())
	require.NoError(t, l.Save(path))

	entries, err := LoadLedger(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].Index)
	assert.Equal(t, "Physics", entries[0].Title)
	assert.Equal(t, 5, entries[1].Index)
	assert.Equal(t, "raw", entries[1].Content)
}

func TestLoadLedger_RejectsZeroIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_uploads.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"index": 0, "title": "x", "content": {}}]`), 0o644))

	_, err := LoadLedger(path)
	assert.Error(t, err)
}
