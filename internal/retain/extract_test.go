package retain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFacts_ValidAndMalformedMixed(t *testing.T) {
	raw := []byte(`[
		{"text": "Alice joined Acme in 2020", "fact_type": "world", "entities": [{"name":"Alice","type":"person"}]},
		{"fact_type": "world"},
		{"text": "stray event with no date", "fact_type": "world", "fact_kind": "event"},
		{"text": "bad type", "fact_type": "observation"}
	]`)

	facts, skipped, err := parseFacts(raw)
	require.NoError(t, err)
	assert.Equal(t, 3, skipped)
	require.Len(t, facts, 1)
	assert.Equal(t, "Alice joined Acme in 2020", facts[0].Text)
	require.Len(t, facts[0].Entities, 1)
	assert.Equal(t, "Alice", facts[0].Entities[0].Name)
}

func TestParseFacts_EventRequiresDate(t *testing.T) {
	raw := []byte(`[{"text": "the meeting happened", "fact_type": "experience", "fact_kind": "event", "event_date": "2024-01-02T15:04:05Z"}]`)
	facts, skipped, err := parseFacts(raw)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, facts, 1)
	require.NotNil(t, facts[0].EventDate)
}

func TestParseFacts_NoArrayFound(t *testing.T) {
	_, _, err := parseFacts([]byte("not json at all"))
	require.Error(t, err)
}

func TestParseFacts_WhoIsAnArray(t *testing.T) {
	raw := []byte(`[{"text": "Alice met Bob", "fact_type": "world", "who": ["Alice", "Bob"]}]`)
	facts, skipped, err := parseFacts(raw)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, facts, 1)
	assert.Equal(t, []string{"Alice", "Bob"}, facts[0].Who)
}
