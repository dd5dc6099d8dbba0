package reflect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCitations_StripsHallucinatedAndStopsShort(t *testing.T) {
	tc := &toolContext{available: map[string]bool{"a": true}}
	result, hallucinated, err := (&Service{}).validateCitations("a confident, well-supported answer", []string{"a", "z"}, tc, 2)
	assert.NoError(t, err)
	assert.False(t, hallucinated)
	assert.Equal(t, []string{"a"}, result.CitedIDs)
}

func TestValidateCitations_NoEvidenceAndNontrivialAnswerContinuesLoop(t *testing.T) {
	tc := &toolContext{available: map[string]bool{}}
	_, hallucinated, err := (&Service{}).validateCitations("the budget will grow by roughly 12% next quarter", nil, tc, 1)
	assert.NoError(t, err)
	assert.True(t, hallucinated)
}

func TestValidateCitations_TrivialAnswerFinalizesWithoutEvidence(t *testing.T) {
	tc := &toolContext{available: map[string]bool{}}
	_, hallucinated, err := (&Service{}).validateCitations("not sure", nil, tc, 1)
	assert.NoError(t, err)
	assert.False(t, hallucinated)
}

func TestIsNontrivialAnswer(t *testing.T) {
	assert.False(t, isNontrivialAnswer("  "))
	assert.False(t, isNontrivialAnswer("no idea"))
	assert.True(t, isNontrivialAnswer("the contract renews automatically every March"))
}
