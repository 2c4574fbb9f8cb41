// Package labels maintains the (category, topic) label universe that is fed
// back into label prompts so the model prefers existing labels.
package labels

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jonathan/course-content-pipeline/internal/types"
)

// Label dimension keys as they appear in model responses and the label file.
const (
	CategoryKey = "label-1"
	TopicKey    = "label-2"
)

// ErrInvalidInput is returned when the input is empty or not a list.
var ErrInvalidInput = errors.New("labels: input must be a non-empty list")

// MissingFieldError reports an element that lacks a label dimension.
type MissingFieldError struct {
	Index int
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("labels: element %d is missing required key %q", e.Index, e.Field)
}

// GroupLabels builds the sorted, de-duplicated universe of each dimension from
// decoded JSON. data must be a non-empty []any whose elements are objects
// carrying both dimension keys. Null and empty values are skipped.
func GroupLabels(data any) (*types.LabelSet, error) {
	items, ok := data.([]any)
	if !ok || len(items) == 0 {
		return nil, ErrInvalidInput
	}

	pairs := make([]types.LabelPair, 0, len(items))
	for idx, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrInvalidInput, idx)
		}
		category, ok := obj[CategoryKey]
		if !ok {
			return nil, &MissingFieldError{Index: idx, Field: CategoryKey}
		}
		topic, ok := obj[TopicKey]
		if !ok {
			return nil, &MissingFieldError{Index: idx, Field: TopicKey}
		}
		pairs = append(pairs, types.LabelPair{Category: labelString(category), Topic: labelString(topic)})
	}
	return Group(pairs)
}

// Group builds the label universe from typed pairs.
func Group(pairs []types.LabelPair) (*types.LabelSet, error) {
	if len(pairs) == 0 {
		return nil, ErrInvalidInput
	}
	categories := make([]string, 0, len(pairs))
	topics := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.Category != "" {
			categories = append(categories, p.Category)
		}
		if p.Topic != "" {
			topics = append(topics, p.Topic)
		}
	}
	return &types.LabelSet{
		Categories: sortedUnique(categories),
		Topics:     sortedUnique(topics),
	}, nil
}

func sortedUnique(values []string) []string {
	slices.Sort(values)
	return slices.Compact(values)
}

func labelString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
