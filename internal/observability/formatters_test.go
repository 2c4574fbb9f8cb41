package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/course-content-pipeline/internal/types"
)

func TestPrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunSummary(&types.RunSummary{
		RunID:             "run-1",
		Preset:            "seo",
		Keys:              5,
		Records:           4,
		Dropped:           1,
		SubtasksSucceeded: 12,
		SubtasksExhausted: 8,
		FailedAttempts:    24,
		Pauses:            1,
		PersistFailures:   2,
	})
	output := buf.String()

	assert.Contains(t, output, "GENERATION SUMMARY")
	assert.Contains(t, output, "5 processed, 4 recorded, 1 dropped")
	assert.Contains(t, output, "12 succeeded, 8 exhausted")
	assert.Contains(t, output, "24 failed")
	assert.Contains(t, output, "2 result writes failed")
}

func TestPrintRunSummary_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintRunSummary(nil)
	assert.Empty(t, buf.String())
}

func TestPrintUploadSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	failed := []types.FailureRecord{{Index: 2, Title: "Chemistry"}}
	p.PrintUploadSummary(&types.UploadSummary{Items: 3, Succeeded: 2, Failed: 1, Ledger: "failed_uploads.json"}, failed)
	output := buf.String()

	assert.Contains(t, output, "UPLOAD SUMMARY")
	assert.Contains(t, output, "#2 Chemistry")
	assert.Contains(t, output, "failed_uploads.json")
}

func TestPrintUploadSummary_TruncatesList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	var failed []types.FailureRecord
	for i := 1; i <= 8; i++ {
		failed = append(failed, types.FailureRecord{Index: i, Title: strings.Repeat("x", 60)})
	}
	p.PrintUploadSummary(&types.UploadSummary{Items: 8, Failed: 8}, failed)
	output := buf.String()

	assert.Contains(t, output, "... and 3 more")
	assert.Contains(t, output, "...")
}

func TestPrintLabelSet(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintLabelSet(&types.LabelSet{
		Categories: []string{"Calculus", "Physics"},
		Topics:     []string{"Derivatives", "Entropy", "Integrals", "Kinematics", "Limits", "Optics"},
	})
	output := buf.String()

	assert.Contains(t, output, "Categories (2)")
	assert.Contains(t, output, "Topics (6)")
	assert.Contains(t, output, "• Calculus")
	assert.Contains(t, output, "... and 1 more")
}

func TestPrintBox_LongLinesTruncated(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("a", 100))
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
}
