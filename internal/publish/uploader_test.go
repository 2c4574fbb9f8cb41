package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/course-content-pipeline/internal/observability"
	"github.com/jonathan/course-content-pipeline/internal/ratelimit"
	"github.com/jonathan/course-content-pipeline/internal/store"
	"github.com/jonathan/course-content-pipeline/internal/types"
)

// recordingServer captures every request body and answers with status(title).
type recordingServer struct {
	mu       sync.Mutex
	requests []Request
	status   func(title string) int
}

func (s *recordingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	w.WriteHeader(s.status(req.Title))
}

func (s *recordingServer) count(title string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Title == title {
			n++
		}
	}
	return n
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func TestNewUploader_RequiresEndpoint(t *testing.T) {
	_, err := NewUploader(Options{})
	require.Error(t, err)
	assert.True(t, types.IsConfiguration(err))
}

func TestUpload_PostsBody(t *testing.T) {
	srv := &recordingServer{status: func(string) int { return http.StatusCreated }}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	u, err := NewUploader(Options{Endpoint: ts.URL, Prefix: "course/"})
	require.NoError(t, err)

	ok := u.Upload(context.Background(), "Calculus", map[string]any{"FAQ": []any{}})
	assert.True(t, ok)

	require.Len(t, srv.requests, 1)
	assert.Equal(t, "Calculus", srv.requests[0].Title)
	assert.Equal(t, "course/", srv.requests[0].Prefix)
	assert.Equal(t, DefaultAction, srv.requests[0].Action)
	assert.Equal(t, map[string]any{"FAQ": []any{}}, srv.requests[0].Content)
}

func TestUpload_RetriesWithFixedDelay(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	sleeper := &sleepRecorder{}
	u, err := NewUploader(Options{Endpoint: ts.URL, Sleep: sleeper.Sleep})
	require.NoError(t, err)

	assert.True(t, u.Upload(context.Background(), "Physics", "body"))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, sleeper.delays)
}

func TestUpload_ReturnsFalseWhenExhausted(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	sleeper := &sleepRecorder{}
	u, err := NewUploader(Options{Endpoint: ts.URL, Sleep: sleeper.Sleep, MaxRetries: 3})
	require.NoError(t, err)

	assert.False(t, u.Upload(context.Background(), "Physics", "body"))
	assert.Equal(t, 3, calls)
	assert.Len(t, sleeper.delays, 2)
}

func TestUpload_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	sleeper := &sleepRecorder{}
	u, err := NewUploader(Options{Endpoint: url, Sleep: sleeper.Sleep})
	require.NoError(t, err)
	assert.False(t, u.Upload(context.Background(), "x", "y"))
}

func TestUpload_UnencodableContent(t *testing.T) {
	u, err := NewUploader(Options{Endpoint: "http://127.0.0.1:0"})
	require.NoError(t, err)
	assert.False(t, u.Upload(context.Background(), "bad", make(chan int)))
}

func TestUploadBatch_RecordsFailedItemInLedger(t *testing.T) {
	srv := &recordingServer{status: func(title string) int {
		if title == "Chemistry" {
			return http.StatusServiceUnavailable
		}
		return http.StatusOK
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	metrics := observability.NewMetrics()
	sleeper := &sleepRecorder{}
	u, err := NewUploader(Options{
		Endpoint: ts.URL,
		Sleep:    sleeper.Sleep,
		Logger:   zap.New(core),
		Metrics:  metrics,
	})
	require.NoError(t, err)

	records := []*types.KeyRecord{
		types.NewKeyRecord("Biology"),
		types.NewKeyRecord("Chemistry"),
		types.NewKeyRecord("Physics"),
	}
	for _, r := range records {
		r.Merge("overview", map[string]any{"title": r.Key})
	}

	ledgerPath := filepath.Join(t.TempDir(), "failed_uploads.json")
	summary, ledger, err := u.UploadBatch(context.Background(), ItemsFromRecords(records), BatchOptions{LedgerPath: ledgerPath})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Items)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, srv.count("Chemistry"))
	assert.Equal(t, 1, srv.count("Physics"))

	require.Equal(t, 1, ledger.Len())
	assert.Equal(t, 2, ledger.Entries()[0].Index)
	assert.Equal(t, "Chemistry", ledger.Entries()[0].Title)

	saved, err := store.LoadLedger(ledgerPath)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, 2, saved[0].Index)
	assert.Equal(t, map[string]any{"overview": map[string]any{"title": "Chemistry"}}, saved[0].Content)

	assert.Equal(t, 1, logs.FilterMessage("upload completed with 1 failure").Len())
	assert.Equal(t, 3, logs.FilterMessage("upload attempt failed").Len())

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.UploadsTotal.WithLabelValues("delivered")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.UploadsTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.UploadAttemptsFailed))
}

func TestUploadBatch_EmptyLedgerWrittenAsEmptyArray(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	u, err := NewUploader(Options{Endpoint: ts.URL, Logger: zap.New(core)})
	require.NoError(t, err)

	ledgerPath := filepath.Join(t.TempDir(), "failed_uploads.json")
	summary, _, err := u.UploadBatch(context.Background(), []Item{{Title: "a", Content: "x"}}, BatchOptions{LedgerPath: ledgerPath})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Failed)

	saved, err := store.LoadLedger(ledgerPath)
	require.NoError(t, err)
	assert.Empty(t, saved)
	assert.Equal(t, 1, logs.FilterMessage("upload completed with 0 failures").Len())
}

func TestUploadBatch_ReprocessKeepsLedgerIndex(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer ts.Close()

	u, err := NewUploader(Options{Endpoint: ts.URL, RetryDelay: -1, MaxRetries: 1})
	require.NoError(t, err)

	items := ItemsFromLedger([]types.FailureRecord{{Index: 7, Title: "History", Content: map[string]any{"a": 1.0}}})
	_, ledger, err := u.UploadBatch(context.Background(), items, BatchOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, ledger.Len())
	assert.Equal(t, 7, ledger.Entries()[0].Index)
}

func TestUploadBatch_CancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	u, err := NewUploader(Options{Endpoint: ts.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = u.UploadBatch(ctx, []Item{{Title: "a"}}, BatchOptions{Throttle: ratelimitThrottle()})
	assert.ErrorIs(t, err, context.Canceled)
}

func ratelimitThrottle() *ratelimit.Throttle {
	return ratelimit.NewThrottle(1)
}
