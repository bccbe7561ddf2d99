package workflow

import (
	"os"
	"path/filepath"
	"testing"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := Parse([]byte(s))
	require.NoError(t, err)
	return doc
}

func TestValidateWellFormed(t *testing.T) {
	doc := mustParse(t, `{"name": "ok", "nodes": [{"id": "A"}, {"id": "B"}], "connections": {"A": ["B"]}}`)

	r := Validate(doc)
	assert.True(t, r.Valid(), "issues: %v", r.Issues)
	assert.NoError(t, r.Err())
}

func TestValidateDanglingTarget(t *testing.T) {
	doc := mustParse(t, `{"name": "bad", "nodes": [{"id": "A"}, {"id": "B"}], "connections": {"A": ["C"]}}`)

	r := Validate(doc)
	assert.False(t, r.Valid())
	assert.True(t, r.Has(CodeDanglingTarget))
	require.Len(t, r.Errors(), 1)
	assert.Contains(t, r.Errors()[0].Message, `"C"`)
	assert.ErrorIs(t, r.Err(), errors.ErrValidationFailed)
}

func TestValidateDanglingSource(t *testing.T) {
	doc := mustParse(t, `{"name": "bad", "nodes": [{"id": "A"}], "connections": {"Ghost": ["A"]}}`)

	r := Validate(doc)
	assert.True(t, r.Has(CodeDanglingSource))
	assert.False(t, r.Has(CodeDanglingTarget))
}

func TestValidateResolvesByNameThenID(t *testing.T) {
	doc := mustParse(t, `{
		"name": "mixed",
		"nodes": [{"id": "1", "name": "Start"}, {"id": "2", "name": "End"}],
		"connections": {"Start": ["2"]}
	}`)

	r := Validate(doc)
	assert.True(t, r.Valid(), "issues: %v", r.Issues)
	n, ok := doc.NodeByRef("2")
	require.True(t, ok)
	assert.Equal(t, "End", n.Name)
}

func TestValidateDuplicateNodeIDs(t *testing.T) {
	doc := mustParse(t, `{"name": "dup", "nodes": [{"id": "A", "name": "x"}, {"id": "A", "name": "y"}, {"id": "A", "name": "z"}]}`)

	r := Validate(doc)
	require.Len(t, r.Errors(), 1, "a repeated id is reported once")
	assert.Equal(t, CodeDuplicateNodeID, r.Errors()[0].Code)
}

func TestValidateTimestampOrder(t *testing.T) {
	doc := mustParse(t, `{"name": "t", "createdAt": "2024-05-01T00:00:00Z", "updatedAt": "2024-04-01T00:00:00Z"}`)
	r := Validate(doc)
	assert.True(t, r.Has(CodeTimestampOrder))
	assert.False(t, r.Valid())

	doc = mustParse(t, `{"name": "t", "createdAt": "2024-05-01T00:00:00Z", "updatedAt": "2024-05-01T00:00:00Z"}`)
	assert.True(t, Validate(doc).Valid())

	doc = mustParse(t, `{"name": "t", "updatedAt": "2024-05-01T00:00:00Z"}`)
	assert.True(t, Validate(doc).Valid())
}

func TestValidateWarningsAreNotFatal(t *testing.T) {
	doc := mustParse(t, `{
		"nodes": [{"name": "Same"}, {"id": "2", "name": "Same"}],
		"tags": ["a", "b", "a"]
	}`)

	r := Validate(doc)
	assert.True(t, r.Valid())
	assert.True(t, r.Has(CodeMissingName))
	assert.True(t, r.Has(CodeMissingNodeID))
	assert.True(t, r.Has(CodeDuplicateNodeName))
	assert.True(t, r.Has(CodeDuplicateTag))
	assert.Len(t, r.Warnings(), 4)
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"name": "g", "nodes": [{"id": "A"}]}`), 0644))
	require.NoError(t, os.WriteFile(bad, []byte(`{"name": "g", `), 0644))

	doc, r := ValidateFile(good)
	require.NotNil(t, doc)
	assert.True(t, r.Valid())
	assert.Equal(t, good, r.Source)

	doc, r = ValidateFile(bad)
	assert.Nil(t, doc)
	assert.True(t, r.Has(CodeInvalidJSON))

	_, r = ValidateFile(filepath.Join(dir, "missing.json"))
	assert.True(t, r.Has(CodeUnreadable))

	require.NoError(t, os.WriteFile(bad, []byte(`{"nodes": 5}`), 0644))
	_, r = ValidateFile(bad)
	assert.True(t, r.Has(CodeMalformed))
}
