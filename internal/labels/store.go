package labels

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jonathan/course-content-pipeline/internal/prompts"
	"github.com/jonathan/course-content-pipeline/internal/store"
	"github.com/jonathan/course-content-pipeline/internal/types"
)

// Store is the label file: an append-only list of accepted label pairs,
// de-duplicated on (category, topic).
type Store struct {
	path  string
	pairs []types.LabelPair
	seen  map[[2]string]bool
}

// Open loads the label file at path. A missing file or an empty list yields
// an empty store; any other content must pass GroupLabels.
func Open(path string) (*Store, error) {
	s := &Store{path: path, seen: make(map[[2]string]bool)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read label file %s: %w", path, err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse label file %s: %w", path, err)
	}
	items, ok := raw.([]any)
	if ok && len(items) == 0 {
		return s, nil
	}
	// every element must carry both dimensions
	if _, err := GroupLabels(raw); err != nil {
		return nil, fmt.Errorf("invalid label file %s: %w", path, err)
	}
	for _, item := range items {
		obj := item.(map[string]any)
		s.add(types.LabelPair{
			Category: labelString(obj[CategoryKey]),
			Topic:    labelString(obj[TopicKey]),
			Question: labelString(obj["question"]),
		})
	}
	return s, nil
}

// Pairs returns the accepted pairs in insertion order.
func (s *Store) Pairs() []types.LabelPair {
	return s.pairs
}

// Universe returns the grouped label sets, or empty sets when nothing has
// been accepted yet.
func (s *Store) Universe() *types.LabelSet {
	set, err := Group(s.pairs)
	if err != nil {
		return &types.LabelSet{Categories: []string{}, Topics: []string{}}
	}
	return set
}

// Add appends pairs not already present and reports how many were new.
func (s *Store) Add(pairs ...types.LabelPair) int {
	added := 0
	for _, p := range pairs {
		if s.add(p) {
			added++
		}
	}
	return added
}

// Save rewrites the label file with every accepted pair.
func (s *Store) Save() error {
	pairs := s.pairs
	if pairs == nil {
		pairs = []types.LabelPair{}
	}
	return store.WriteJSON(s.path, pairs)
}

func (s *Store) add(p types.LabelPair) bool {
	if p.Category == "" && p.Topic == "" {
		return false
	}
	k := [2]string{p.Category, p.Topic}
	if s.seen[k] {
		return false
	}
	s.seen[k] = true
	s.pairs = append(s.pairs, p)
	return true
}

// Instruction renders template with the current universe as {{.Labels}}.
// It returns "" until a label has been accepted.
func (s *Store) Instruction(template string) (string, error) {
	if len(s.pairs) == 0 {
		return "", nil
	}
	data, err := json.Marshal(s.Universe())
	if err != nil {
		return "", fmt.Errorf("failed to encode labels: %w", err)
	}
	return prompts.Format(template, map[string]string{"Labels": string(data)}), nil
}

// Accept adds the pair carried by a label response and saves the file when
// it is new. It reports whether the store changed.
func (s *Store) Accept(response any) (bool, error) {
	pair, ok := FromResponse(response)
	if !ok || s.Add(pair) == 0 {
		return false, nil
	}
	return true, s.Save()
}

// FromResponse extracts the label pair from a label subtask response.
// It returns false when the model judged the question not worth recording
// ("memory" is "0") or the pair is incomplete.
func FromResponse(response any) (types.LabelPair, bool) {
	obj, ok := response.(map[string]any)
	if !ok {
		return types.LabelPair{}, false
	}
	if labelString(obj["memory"]) == "0" {
		return types.LabelPair{}, false
	}
	memo, ok := obj["what to memory"].(map[string]any)
	if !ok {
		return types.LabelPair{}, false
	}
	p := types.LabelPair{
		Category: labelString(memo[CategoryKey]),
		Topic:    labelString(memo[TopicKey]),
		Question: labelString(memo["question"]),
	}
	if p.Category == "" || p.Topic == "" || p.Category == "0" || p.Topic == "0" {
		return types.LabelPair{}, false
	}
	return p, true
}
