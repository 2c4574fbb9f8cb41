package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/course-content-pipeline/internal/types"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ObserveKey(true)
	m.ObserveKey(true)
	m.ObserveKey(false)
	m.ObserveSubtask("FAQ", types.StatusExhausted)
	m.ObserveFailedAttempt("FAQ", types.StatusSchemaInvalid)
	m.ObserveFailedAttempt("FAQ", types.StatusSchemaInvalid)
	m.ObservePause()
	m.ObserveUpload(false)
	m.ObserveUploadRetry()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.KeysTotal.WithLabelValues("recorded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.KeysTotal.WithLabelValues("dropped")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubtasksTotal.WithLabelValues("FAQ", "exhausted")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.FailedAttemptsTotal.WithLabelValues("FAQ", "schema_invalid")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PausesTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UploadsTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UploadAttemptsFailed))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveKey(true)
		m.ObserveSubtask("a", types.StatusSuccess)
		m.ObserveFailedAttempt("a", types.StatusTransportError)
		m.ObservePause()
		m.ObserveUpload(true)
		m.ObserveUploadRetry()
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile("ignored.prom"))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveKey(true)

	path := filepath.Join(t.TempDir(), "content.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `content_keys_total{outcome="recorded"} 1`)
}
