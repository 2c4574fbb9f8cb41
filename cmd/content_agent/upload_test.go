package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/course-content-pipeline/internal/publish"
	"github.com/jonathan/course-content-pipeline/internal/store"
	"github.com/jonathan/course-content-pipeline/internal/types"
)

// contentServer rejects every request whose title is in reject.
func contentServer(t *testing.T, reject map[string]bool) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var delivered []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req publish.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if reject[req.Title] {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		mu.Lock()
		delivered = append(delivered, req.Title)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &delivered
}

func writeResults(t *testing.T, path string, keys ...string) {
	t.Helper()
	s := store.NewResultStore(path, nil, nil)
	for _, k := range keys {
		r := types.NewKeyRecord(k)
		r.Merge("overview", map[string]any{"title": k})
		s.Append(context.Background(), r)
	}
	require.Zero(t, s.FailedWrites())
}

func TestUpload_ResultsThenLedger(t *testing.T) {
	dir := t.TempDir()
	results := filepath.Join(dir, "responses.json")
	writeResults(t, results, "Calculus", "Physics", "Chemistry")

	reject := map[string]bool{"Physics": true}
	srv, delivered := contentServer(t, reject)

	cfg := testConfig(t)
	cfg.Upload.Endpoint = srv.URL
	cfg.Upload.RetryDelay = 0
	cfg.Upload.LedgerPath = filepath.Join(dir, "failed_uploads.json")

	items, err := loadUploadItems([]string{results}, "")
	require.NoError(t, err)

	var out bytes.Buffer
	summary, err := upload(context.Background(), cfg, items, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Items)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{"Calculus", "Chemistry"}, *delivered)

	entries, err := store.LoadLedger(cfg.Upload.LedgerPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Index)
	assert.Equal(t, "Physics", entries[0].Title)

	// endpoint recovers; reprocess the ledger into a fresh one
	delete(reject, "Physics")
	items, err = loadUploadItems(nil, cfg.Upload.LedgerPath)
	require.NoError(t, err)
	summary, err = upload(context.Background(), cfg, items, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)

	entries, err = store.LoadLedger(cfg.Upload.LedgerPath)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpload_MissingEndpoint(t *testing.T) {
	cfg := testConfig(t)
	_, err := upload(context.Background(), cfg, nil, &bytes.Buffer{})
	assert.True(t, types.IsConfiguration(err))
}

func TestLoadUploadItems_InvalidResults(t *testing.T) {
	_, err := loadUploadItems([]string{filepath.Join(t.TempDir(), "missing.json")}, "")
	assert.Error(t, err)
}
