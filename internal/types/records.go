package types

import (
	"encoding/json"
	"maps"
)

// KeyRecord is the merged output of every successful subtask for one key.
type KeyRecord struct {
	Key     string
	Results map[string]any // subtask name -> accepted value
	Pad     map[string]any // baseline fields shown when no subtask supplies them
}

// NewKeyRecord creates an empty record for key.
func NewKeyRecord(key string) *KeyRecord {
	return &KeyRecord{Key: key, Results: make(map[string]any)}
}

// Merge stores an accepted subtask value under its name.
func (r *KeyRecord) Merge(name string, value any) {
	r.Results[name] = value
}

// Layer sets baseline fields. Existing baseline keys are kept.
func (r *KeyRecord) Layer(pad map[string]any) {
	if len(pad) == 0 {
		return
	}
	if r.Pad == nil {
		r.Pad = make(map[string]any, len(pad))
	}
	for k, v := range pad {
		if _, ok := r.Pad[k]; !ok {
			r.Pad[k] = v
		}
	}
}

// Succeeded returns the number of subtasks merged into the record.
// Baseline fields are not counted.
func (r *KeyRecord) Succeeded() int {
	return len(r.Results)
}

// Content returns the published document: baseline fields overlaid by results.
func (r *KeyRecord) Content() map[string]any {
	out := make(map[string]any, len(r.Pad)+len(r.Results))
	maps.Copy(out, r.Pad)
	maps.Copy(out, r.Results)
	return out
}

type keyRecordJSON struct {
	Key     string         `json:"key"`
	Content map[string]any `json:"content"`
}

// MarshalJSON writes the record as {"key": ..., "content": {...}}.
func (r *KeyRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(keyRecordJSON{Key: r.Key, Content: r.Content()})
}

// UnmarshalJSON reads a persisted record. Baseline and results are not
// distinguishable on disk, so all content lands in Results.
func (r *KeyRecord) UnmarshalJSON(data []byte) error {
	var raw keyRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Key = raw.Key
	r.Results = raw.Content
	if r.Results == nil {
		r.Results = make(map[string]any)
	}
	r.Pad = nil
	return nil
}

// FailureRecord is one item the uploader could not deliver.
type FailureRecord struct {
	Index   int    `json:"index"` // 1-based position in the upload batch
	Title   string `json:"title"`
	Content any    `json:"content"`
}

// LabelPair is one accepted (category, topic) label.
type LabelPair struct {
	Category string `json:"label-1"`
	Topic    string `json:"label-2"`
	Question string `json:"question,omitempty"`
}

// LabelSet holds the distinct, sorted values of each label dimension.
type LabelSet struct {
	Categories []string `json:"label-1"`
	Topics     []string `json:"label-2"`
}
