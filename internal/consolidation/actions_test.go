package consolidation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemporalWeight_RecentGapNearOne(t *testing.T) {
	assert.InDelta(t, 1.0, temporalWeight(0), 0.001)
}

func TestTemporalWeight_DecaysWithGap(t *testing.T) {
	assert.InDelta(t, 0.5, temporalWeight(12), 0.001)
}

func TestTemporalWeight_FlooredAtMinimum(t *testing.T) {
	assert.Equal(t, temporalWeightMin, temporalWeight(1000))
}

func TestTemporalWeight_NegativeGapTreatedAsAbsolute(t *testing.T) {
	assert.InDelta(t, 0.5, temporalWeight(-12), 0.001)
}
