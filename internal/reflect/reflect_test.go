package reflect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hindsight.dev/memoryengine/internal/llmprovider"
	"hindsight.dev/memoryengine/internal/models"
)

func TestBuildDispositionPrompt_AllNeutralIsEmpty(t *testing.T) {
	assert.Equal(t, "", buildDispositionPrompt(models.DefaultDisposition()))
}

func TestBuildDispositionPrompt_SkepticismHigh(t *testing.T) {
	d := models.DefaultDisposition()
	d.Skepticism = 5
	prompt := buildDispositionPrompt(d)
	assert.Contains(t, prompt, "skeptical")
}

func TestDirectivesSatisfied_EmptyDirectives(t *testing.T) {
	assert.True(t, directivesSatisfied("anything", nil))
}

func TestDirectivesSatisfied_KeywordMissing(t *testing.T) {
	ok := directivesSatisfied("the weather is nice today", []string{"always mention the budget constraints"})
	assert.False(t, ok)
}

func TestDirectivesSatisfied_KeywordPresent(t *testing.T) {
	ok := directivesSatisfied("the budget constraints are tight this quarter", []string{"always mention the budget constraints"})
	assert.True(t, ok)
}

func TestFilterAvailable_DropsHallucinatedIDs(t *testing.T) {
	tc := &toolContext{available: map[string]bool{"a": true, "b": true}}
	out := filterAvailable([]string{"a", "z"}, tc)
	assert.Equal(t, []string{"a"}, out)
}

func TestFindDoneCall(t *testing.T) {
	calls := []llmprovider.ToolCall{
		{Name: "recall", Input: map[string]any{"query": "x"}},
		{Name: "done", Input: map[string]any{"answer": "the answer", "cited_ids": []any{"a", "b"}}},
	}
	found, answer, ids := findDoneCall(calls)
	assert.True(t, found)
	assert.Equal(t, "the answer", answer)
	assert.Equal(t, []string{"a", "b"}, ids)
}
