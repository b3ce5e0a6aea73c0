package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidationErrorsIs(t *testing.T) {
	validation := &ValidationErrors{}
	validation.Add("uri", ErrMissingURI)

	err := validation.Err()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMissingURI))
}

func TestValidationErrorsNestedFields(t *testing.T) {
	nested := &ValidationErrors{}
	nested.AddMessage("exact", "quote is required")

	validation := &ValidationErrors{}
	validation.Add("target", nested)

	err := validation.Err()
	require.Error(t, err)

	list, ok := err.(*ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, list.Errors, 1)
	require.Equal(t, "target.exact", list.Errors[0].Field)
}

func TestAnnotationValidate(t *testing.T) {
	valid := &Annotation{Tag: "t1", URI: "https://example.com", User: "acct:ana"}
	require.NoError(t, valid.Validate())

	missing := &Annotation{}
	err := missing.Validate()
	require.ErrorIs(t, err, ErrMissingURI)
	require.ErrorIs(t, err, ErrMissingUser)
	require.ErrorIs(t, err, ErrMissingKey)

	self := &Annotation{ID: "a1", URI: "u", User: "x", References: []string{"a1"}}
	require.ErrorIs(t, self.Validate(), ErrSelfReference)

	dupes := &Annotation{ID: "a1", URI: "u", User: "x", Tags: []string{"Go", "go"}}
	require.ErrorIs(t, dupes.Validate(), ErrDuplicateTag)
}

func TestAnnotationValidateSelectors(t *testing.T) {
	ann := &Annotation{
		ID:   "a1",
		URI:  "u",
		User: "x",
		Target: []Target{{Source: "u", Selectors: []Selector{
			{Type: SelectorTextPosition, Start: 10, End: 4},
			{Type: "Bogus"},
		}}},
	}
	err := ann.Validate()
	require.ErrorIs(t, err, ErrInvalidSelection)
	require.ErrorIs(t, err, ErrUnknownSelector)

	list := err.(*ValidationErrors)
	require.Equal(t, "target[0].selector[0]", list.Errors[0].Field)
	require.Equal(t, "target[0].selector[1].type", list.Errors[1].Field)
}
