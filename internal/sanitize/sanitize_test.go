package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/docweaver/internal/errors"
)

func TestPayloadDirectParse(t *testing.T) {
	obj, err := Payload([]byte(`{"executive_summary": "text", "count": 2}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"executive_summary", "count"}, obj.Keys())

	v, ok := obj.Get("executive_summary")
	require.True(t, ok)
	assert.Equal(t, "text", v)
}

func TestPayloadQuoteWrapped(t *testing.T) {
	for _, in := range []string{
		`'{"key": "value"}'`,
		`"{"key": "value"}"`,
	} {
		obj, err := Payload([]byte(in))
		require.NoError(t, err, "input %s", in)
		v, _ := obj.Get("key")
		assert.Equal(t, "value", v)
	}
}

func TestPayloadFenceWrapped(t *testing.T) {
	for _, in := range []string{
		"```json\n{\"key\": \"value\"}\n```",
		"```\n{\"key\": \"value\"}\n```",
	} {
		obj, err := Payload([]byte(in))
		require.NoError(t, err, "input %s", in)
		v, _ := obj.Get("key")
		assert.Equal(t, "value", v)
	}
}

func TestPayloadJSONEncodedString(t *testing.T) {
	// A JSON string whose content is itself a JSON object: unwrapping must
	// convert escaped newlines, quotes, and backslashes.
	in := `"{\"summary\": \"line one\nline two \\\"quoted\\\"\"}"`
	obj, err := Payload([]byte(in))
	require.NoError(t, err)
	v, _ := obj.Get("summary")
	assert.Equal(t, "line one\nline two \"quoted\"", v)
}

func TestPayloadTruncatedIsMalformed(t *testing.T) {
	// Quote-wrapped and truncated mid-object: must classify as malformed
	// JSON, never as a continuation signal.
	_, err := Payload([]byte(`'{"key": "value", "incomplete`))
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryMalformedJSON))
	assert.True(t, derrors.IsRetryable(err))
}

func TestPayloadNonObjectIsMalformed(t *testing.T) {
	for _, in := range []string{`[1, 2, 3]`, `"just a string"`, `42`, ``, `   `} {
		_, err := Payload([]byte(in))
		assert.Error(t, err, "input %q", in)
		assert.True(t, derrors.IsCategory(err, derrors.CategoryMalformedJSON), "input %q", in)
	}
}

func TestPayloadTrailingWhitespace(t *testing.T) {
	obj, err := Payload([]byte("{\"key\": \"value\"}\n\n  \n"))
	require.NoError(t, err)
	v, _ := obj.Get("key")
	assert.Equal(t, "value", v)
}

func TestDecodePreservesKeyOrder(t *testing.T) {
	v, err := Decode([]byte(`{"zeta": 1, "alpha": {"nested_b": true, "nested_a": null}, "mid": ["x", "y"]}`))
	require.NoError(t, err)
	obj, ok := v.(*Object)
	require.True(t, ok)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, obj.Keys())

	nestedV, _ := obj.Get("alpha")
	nested, ok := nestedV.(*Object)
	require.True(t, ok)
	assert.Equal(t, []string{"nested_b", "nested_a"}, nested.Keys())

	arrV, _ := obj.Get("mid")
	arr, ok := arrV.([]Value)
	require.True(t, ok)
	assert.Equal(t, []Value{"x", "y"}, arr)
}

func TestDecodeRejectsTrailingGarbage(t *testing.T) {
	_, err := Decode([]byte(`{"a": 1} {"b": 2}`))
	assert.Error(t, err)
}

func TestObjectSetAndDelete(t *testing.T) {
	obj := NewObject()
	obj.Set("a", "1")
	obj.Set("b", "2")
	obj.Set("a", "updated")
	assert.Equal(t, []string{"a", "b"}, obj.Keys(), "re-set must not duplicate key order")

	obj.Delete("a")
	assert.Equal(t, []string{"b"}, obj.Keys())
	assert.False(t, obj.Has("a"))
	obj.Delete("missing") // no-op
	assert.Equal(t, 1, obj.Len())
}
