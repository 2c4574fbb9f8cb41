// Package observability provides logging, metrics and formatted console
// output for the content agent.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/course-content-pipeline/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunSummary outputs the counts of a generation run.
func (p *Printer) PrintRunSummary(s *types.RunSummary) {
	if s == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:       %s\n", s.RunID))
	sb.WriteString(fmt.Sprintf("Preset:    %s\n", s.Preset))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Keys:      %d processed, %d recorded, %d dropped\n", s.Keys, s.Records, s.Dropped))
	sb.WriteString(fmt.Sprintf("Subtasks:  %d succeeded, %d exhausted\n", s.SubtasksSucceeded, s.SubtasksExhausted))
	sb.WriteString(fmt.Sprintf("Attempts:  %d failed\n", s.FailedAttempts))
	sb.WriteString(fmt.Sprintf("Pauses:    %d", s.Pauses))
	if s.PersistFailures > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠ %d result writes failed, check the log", s.PersistFailures))
	}

	p.printBox("GENERATION SUMMARY", sb.String())
}

// PrintUploadSummary outputs the counts of an upload pass.
func (p *Printer) PrintUploadSummary(s *types.UploadSummary, failed []types.FailureRecord) {
	if s == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Items:     %d\n", s.Items))
	sb.WriteString(fmt.Sprintf("Delivered: %d\n", s.Succeeded))
	sb.WriteString(fmt.Sprintf("Failed:    %d", s.Failed))

	if len(failed) > 0 {
		sb.WriteString("\n\n")
		count := min(len(failed), maxItemsToShow)
		for i := 0; i < count; i++ {
			title := failed[i].Title
			if len(title) > 40 {
				title = title[:37] + "..."
			}
			sb.WriteString(fmt.Sprintf("⚠ #%d %s\n", failed[i].Index, title))
		}
		if len(failed) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d more\n", len(failed)-maxItemsToShow))
		}
		sb.WriteString(fmt.Sprintf("Ledger:    %s", s.Ledger))
	}

	p.printBox("UPLOAD SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintLabelSet outputs the label universe.
func (p *Printer) PrintLabelSet(set *types.LabelSet) {
	if set == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Categories (%d):\n", len(set.Categories)))
	writeList(&sb, set.Categories)
	sb.WriteString(fmt.Sprintf("\nTopics (%d):\n", len(set.Topics)))
	writeList(&sb, set.Topics)

	p.printBox("LABELS", strings.TrimSuffix(sb.String(), "\n"))
}

func writeList(sb *strings.Builder, values []string) {
	count := min(len(values), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", values[i]))
	}
	if len(values) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(values)-maxItemsToShow))
	}
}
