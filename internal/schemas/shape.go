package schemas

import (
	"fmt"
	"maps"
	"slices"

	"github.com/jonathan/course-content-pipeline/internal/types"
)

// Validate reports whether value is an object holding every field of shape
// with the expected kind. Only the top level is inspected.
func Validate(value any, shape types.Shape) bool {
	return len(Check(value, shape)) == 0
}

// Check returns the reasons value fails shape, or nil when it conforms.
// Reasons are sorted by field name so callers can log them deterministically.
func Check(value any, shape types.Shape) []string {
	obj, ok := value.(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("expected object, got %s", types.KindOf(value))}
	}

	var reasons []string
	for _, field := range sortedFields(shape) {
		want := shape[field]
		got, present := obj[field]
		if !present {
			reasons = append(reasons, fmt.Sprintf("missing required key: %s", field))
			continue
		}
		if kind := types.KindOf(got); kind != want {
			reasons = append(reasons, fmt.Sprintf("type mismatch for key %q: expected %s, got %s", field, want, kind))
		}
	}
	return reasons
}

// CheckSubtask validates a decoded response for spec. The envelope
// {spec.Name: response} is checked against spec.ExpectedShape, then the
// response's own fields against spec.Fields when present.
func CheckSubtask(spec types.SubtaskSpec, response any) error {
	reasons := Check(map[string]any{spec.Name: response}, spec.ExpectedShape())
	if len(reasons) == 0 && len(spec.Fields) > 0 {
		reasons = Check(response, spec.Fields)
	}
	if len(reasons) > 0 {
		return &types.SchemaError{Subtask: spec.Name, Reasons: reasons}
	}
	return nil
}

func sortedFields(shape types.Shape) []string {
	return slices.Sorted(maps.Keys(shape))
}
