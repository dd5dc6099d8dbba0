package llmprovider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONArray_PlainArray(t *testing.T) {
	items, err := ExtractJSONArray([]byte(`[{"a":1},{"a":2}]`))
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestExtractJSONArray_CodeFenceAndProse(t *testing.T) {
	raw := []byte("Sure, here are the facts:\n```json\n[{\"a\":1}]\n```\nLet me know if you need more.")
	items, err := ExtractJSONArray(raw)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestExtractJSONArray_NoArray(t *testing.T) {
	_, err := ExtractJSONArray([]byte("no array here"))
	require.Error(t, err)
}

func TestExtractJSONArray_Malformed(t *testing.T) {
	_, err := ExtractJSONArray([]byte("[{\"a\": }]"))
	require.Error(t, err)
}
