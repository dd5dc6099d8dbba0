package recall

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuse_CombinesRanksWithRRF(t *testing.T) {
	semantic := []rankedUnit{{unitID: "a", rank: 1}, {unitID: "b", rank: 2}}
	lexical := []rankedUnit{{unitID: "b", rank: 1}, {unitID: "c", rank: 1}}

	fused := fuse(semantic, lexical)
	require := assert.New(t)
	require.Contains(fused, "a")
	require.Contains(fused, "b")
	require.Contains(fused, "c")

	// b appears in both lists at good ranks, so it should score highest.
	assert.Greater(t, fused["b"].FusedScore, fused["a"].FusedScore)
	assert.Greater(t, fused["b"].FusedScore, fused["c"].FusedScore)
}

func TestAssemble_RespectsMaxResults(t *testing.T) {
	rows := map[string]*Result{
		"a": {UnitID: "a", FusedScore: 0.9, Text: "short"},
		"b": {UnitID: "b", FusedScore: 0.5, Text: "short"},
		"c": {UnitID: "c", FusedScore: 0.1, Text: "short"},
	}
	out := assemble(rows, 2)
	assert.Len(t, out, 2)
	assert.Equal(t, "a", out[0].UnitID)
}

func TestAssemble_TiesBreakOnMostRecentCreatedAt(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := map[string]*Result{
		"old": {UnitID: "old", FusedScore: 0.5, Text: "x", CreatedAt: older},
		"new": {UnitID: "new", FusedScore: 0.5, Text: "x", CreatedAt: newer},
	}
	out := assemble(rows, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "new", out[0].UnitID)
}

func TestExtractTimeRange_Today(t *testing.T) {
	now := time.Date(2026, 8, 6, 15, 0, 0, 0, time.UTC)
	tr, ok := ExtractTimeRange("what happened today?", now)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC), tr.Start)
	assert.Equal(t, time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC), tr.End)
}

func TestExtractTimeRange_NoMatch(t *testing.T) {
	_, ok := ExtractTimeRange("tell me about alice", time.Now())
	assert.False(t, ok)
}
