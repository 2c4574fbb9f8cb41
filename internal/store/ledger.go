package store

import (
	"github.com/jonathan/course-content-pipeline/internal/schemas"
	"github.com/jonathan/course-content-pipeline/internal/types"
)

// FailureLedger collects items the uploader could not deliver. It is written
// once at the end of an upload pass and never merged back into results.
type FailureLedger struct {
	entries []types.FailureRecord
}

// Add records a failed item.
func (l *FailureLedger) Add(index int, title string, content any) {
	l.entries = append(l.entries, types.FailureRecord{Index: index, Title: title, Content: content})
}

// Entries returns the recorded failures in batch order.
func (l *FailureLedger) Entries() []types.FailureRecord {
	return l.entries
}

// Len returns the number of failures.
func (l *FailureLedger) Len() int {
	return len(l.entries)
}

// Save writes the ledger to path. An empty ledger is written as [].
func (l *FailureLedger) Save(path string) error {
	entries := l.entries
	if entries == nil {
		entries = []types.FailureRecord{}
	}
	return WriteJSON(path, entries)
}

// LoadLedger reads a ledger file after validating it against the
// failure-ledger schema.
func LoadLedger(path string) ([]types.FailureRecord, error) {
	if err := schemas.ValidateFile(schemas.FailureLedgerSchema, path); err != nil {
		return nil, err
	}
	var entries []types.FailureRecord
	if err := ReadJSON(path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
