package consolidation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hindsight.dev/memoryengine/internal/models"
)

func TestWhoOverlaps_EmptyFactWhoIsUnrestricted(t *testing.T) {
	assert.True(t, whoOverlaps(nil, []string{"Bob"}))
}

func TestWhoOverlaps_DisjointNamesNeverOverlap(t *testing.T) {
	assert.False(t, whoOverlaps([]string{"Alice"}, []string{"Bob"}))
}

func TestWhoOverlaps_SharedNameOverlaps(t *testing.T) {
	assert.True(t, whoOverlaps([]string{"Alice", "Carol"}, []string{"Bob", "Alice"}))
}

func TestRelatedByID_FindsAndMisses(t *testing.T) {
	related := []models.MemoryUnit{{ID: "a"}, {ID: "b"}}
	assert.Equal(t, "b", relatedByID("b", related).ID)
	assert.Nil(t, relatedByID("c", related))
}
