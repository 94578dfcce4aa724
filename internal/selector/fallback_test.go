package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/schema-engine/internal/model"
)

func TestExploratoryPolicy(t *testing.T) {
	res := New(DefaultThresholds(), nil).Select(concat(
		items("failure", "ysq", 55),
		items("subjugation", "ysq", 58),
	))
	require.Nil(t, res.Primary)

	out := ExploratoryPolicy{}.Apply(res)
	require.NotNil(t, out.Primary)
	assert.Equal(t, model.SchemaID("subjugation"), out.Primary.ClinicalID)
	assert.True(t, out.Exploratory)
	assert.Equal(t, 0.0, out.Confidence)
	assert.Len(t, out.SelectionNotes, len(res.SelectionNotes)+1)

	// The selector's own result is left untouched.
	assert.Nil(t, res.Primary)
	assert.False(t, res.Exploratory)
}

func TestExploratoryPolicy_NoOp(t *testing.T) {
	withPrimary := New(DefaultThresholds(), nil).Select(items("failure", "ysq", 65))
	assert.Same(t, withPrimary, ExploratoryPolicy{}.Apply(withPrimary))

	empty := New(DefaultThresholds(), nil).Select(nil)
	assert.Nil(t, ExploratoryPolicy{}.Apply(empty).Primary)
}

func TestStrictPolicy(t *testing.T) {
	res := New(DefaultThresholds(), nil).Select(items("failure", "ysq", 55))
	assert.Same(t, res, StrictPolicy{}.Apply(res))
}

func TestPolicyByName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "strict", false},
		{"strict", "strict", false},
		{"exploratory", "exploratory", false},
		{"lenient", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PolicyByName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}
}
