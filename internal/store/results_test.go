package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/course-content-pipeline/internal/types"
)

type recordingMirror struct {
	positions []int
	err       error
}

func (m *recordingMirror) SaveRecord(_ context.Context, position int, _ *types.KeyRecord) error {
	m.positions = append(m.positions, position)
	return m.err
}

func record(key, subtask string) *types.KeyRecord {
	r := types.NewKeyRecord(key)
	r.Merge(subtask, map[string]any{"text": key})
	return r
}

func TestResultStore_FileEqualsRecordsAfterEveryAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responses.json")
	s := NewResultStore(path, nil, nil)
	ctx := context.Background()

	s.Append(ctx, record("Calculus", "overview"))
	loaded, err := LoadResults(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	s.Append(ctx, record("Physics", "overview"))
	loaded, err = LoadResults(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "Calculus", loaded[0].Key)
	assert.Equal(t, "Physics", loaded[1].Key)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 0, s.FailedWrites())
	assert.Equal(t, path, s.Path())
}

func TestResultStore_MirrorGetsOneBasedPositions(t *testing.T) {
	mirror := &recordingMirror{}
	s := NewResultStore(filepath.Join(t.TempDir(), "r.json"), mirror, nil)

	s.Append(context.Background(), record("a", "x"))
	s.Append(context.Background(), record("b", "x"))

	assert.Equal(t, []int{1, 2}, mirror.positions)
}

func TestResultStore_PersistFailuresAreSwallowed(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	core, logs := observer.New(zap.ErrorLevel)
	mirror := &recordingMirror{err: errors.New("db down")}
	s := NewResultStore(filepath.Join(blocker, "r.json"), mirror, zap.New(core))

	s.Append(context.Background(), record("a", "x"))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, s.FailedWrites())
	assert.Equal(t, 1, logs.FilterMessage("failed to persist results").Len())
	assert.Equal(t, 1, logs.FilterMessage("failed to mirror record").Len())
}

func TestLoadResults_RejectsInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"key": "", "content": {}}]`), 0o644))

	_, err := LoadResults(path)
	assert.Error(t, err)
}
