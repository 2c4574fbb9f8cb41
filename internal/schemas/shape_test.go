package schemas

import (
	"encoding/json"
	"testing"

	"github.com/jonathan/course-content-pipeline/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestValidate_FAQAndCourseInfo(t *testing.T) {
	shape := types.Shape{"FAQ": types.KindSequence, "courseInfo": types.KindObject}

	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"both present and kinded", `{"FAQ": [{"question": "q"}], "courseInfo": {"school": "NYU"}}`, true},
		{"extra keys allowed", `{"FAQ": [], "courseInfo": {}, "other": 1}`, true},
		{"missing FAQ", `{"courseInfo": {}}`, false},
		{"missing courseInfo", `{"FAQ": []}`, false},
		{"FAQ is an object", `{"FAQ": {"question": "q"}, "courseInfo": {}}`, false},
		{"courseInfo is a list", `{"FAQ": [], "courseInfo": []}`, false},
		{"courseInfo is null", `{"FAQ": [], "courseInfo": null}`, false},
		{"not an object", `[{"FAQ": []}]`, false},
		{"scalar", `"text"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(decode(t, tt.value), shape))
		})
	}
}

func TestValidate_ShallowOnly(t *testing.T) {
	shape := types.Shape{"courseInfo": types.KindObject}
	// nested content is not inspected
	value := decode(t, `{"courseInfo": {"assessmentMethods": "should be a list"}}`)
	assert.True(t, Validate(value, shape))
}

func TestCheck_Reasons(t *testing.T) {
	shape := types.Shape{"b": types.KindSequence, "a": types.KindScalar}
	reasons := Check(decode(t, `{"b": {}}`), shape)
	require.Len(t, reasons, 2)
	assert.Contains(t, reasons[0], "missing required key: a")
	assert.Contains(t, reasons[1], `"b": expected sequence, got object`)
}

func TestCheckSubtask(t *testing.T) {
	faq := types.SubtaskSpec{Name: "FAQ", Root: types.KindSequence}
	assert.NoError(t, CheckSubtask(faq, decode(t, `[{"question": "q", "answer": "a"}]`)))

	err := CheckSubtask(faq, decode(t, `{"question": "q"}`))
	var schemaErr *types.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "FAQ", schemaErr.Subtask)

	label := types.SubtaskSpec{
		Name:   "label",
		Root:   types.KindObject,
		Fields: types.Shape{"memory": types.KindScalar, "what to memory": types.KindObject},
	}
	assert.NoError(t, CheckSubtask(label, decode(t, `{"memory": "1", "what to memory": {"label-1": "x"}}`)))
	assert.Error(t, CheckSubtask(label, decode(t, `{"memory": "1"}`)))
}
