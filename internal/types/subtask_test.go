package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		tag     string
		want    Kind
		wantErr bool
	}{
		{"object", KindObject, false},
		{"sequence", KindSequence, false},
		{"scalar", KindScalar, false},
		{"list", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseKind(tt.tag)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.tag, got.String())
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(nil))
	assert.Equal(t, KindObject, KindOf(map[string]any{}))
	assert.Equal(t, KindSequence, KindOf([]any{}))
	assert.Equal(t, KindScalar, KindOf("s"))
	assert.Equal(t, KindScalar, KindOf(float64(1)))
	assert.Equal(t, KindScalar, KindOf(true))
	assert.Equal(t, "null", Kind(0).String())
}

func TestSubtaskSpec_ExpectedShape(t *testing.T) {
	spec := SubtaskSpec{Name: "FAQ", Root: KindSequence}
	assert.Equal(t, Shape{"FAQ": KindSequence}, spec.ExpectedShape())
}

func TestSubtaskResult_OK(t *testing.T) {
	assert.True(t, SubtaskResult{Status: StatusSuccess}.OK())
	assert.False(t, SubtaskResult{Status: StatusExhausted}.OK())
}
