package scoreerr

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestValidation(t *testing.T) {
	err := Validation(InvalidSchemaID, "item-1", "unknown schema %q", "foo")

	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, InvalidSchemaID, err.Code)
	assert.Equal(t, `InvalidSchemaId: item-1: unknown schema "foo"`, err.Error())
	assert.True(t, IsValidation(err))
	assert.False(t, IsConfiguration(err))
}

func TestConfiguration_NoSubject(t *testing.T) {
	err := Configuration(MissingWeightTable, "", "no rows")
	assert.Equal(t, "MissingWeightTable: no rows", err.Error())
	assert.True(t, IsConfiguration(err))
}

func TestPredicates_WrappedChain(t *testing.T) {
	base := Validation(UnknownIdentifier, "nonexistent_schema", "not in registry")
	wrapped := eris.Wrap(base, "modescore: validate request")

	assert.True(t, IsValidation(wrapped))
	assert.Equal(t, UnknownIdentifier, CodeOf(wrapped))
	assert.True(t, HasCode(wrapped, UnknownIdentifier))
	assert.False(t, HasCode(wrapped, OutOfRangeGate))
}

func TestPredicates_Unclassified(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"nil", nil},
		{"plain", errors.New("boom")},
		{"wrapped plain", eris.Wrap(errors.New("boom"), "ctx")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, IsValidation(tt.err))
			assert.False(t, IsConfiguration(tt.err))
			assert.Equal(t, Code(""), CodeOf(tt.err))
		})
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("parse float")
	err := &Error{Kind: KindConfiguration, Code: MalformedTableRow, Err: inner}
	assert.ErrorIs(t, err, inner)
}
