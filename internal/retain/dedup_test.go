package retain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestPrimaryOverlap_SharedPrimaryWho(t *testing.T) {
	assert.True(t, primaryOverlap([]string{"Alice"}, nil, []string{"Alice", "Bob"}, nil))
}

func TestPrimaryOverlap_DifferentWhoAndWhatNeverOverlap(t *testing.T) {
	assert.False(t, primaryOverlap([]string{"Alice"}, strPtr("dentist visit"), []string{"Bob"}, strPtr("car repair")))
}

func TestPrimaryOverlap_SharedWhatOverlaps(t *testing.T) {
	assert.True(t, primaryOverlap(nil, strPtr("Quarterly Review"), nil, strPtr("quarterly review")))
}

func TestPrimaryOverlap_NoSignalsNeverOverlap(t *testing.T) {
	assert.False(t, primaryOverlap(nil, nil, nil, nil))
}
