package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTieBreak_PrefersMostRecentlySeen(t *testing.T) {
	now := time.Now()
	tied := []candidate{
		{id: "old", similarity: 0.82, lastSeen: now.Add(-30 * 24 * time.Hour)},
		{id: "fresh", similarity: 0.80, lastSeen: now.Add(-1 * time.Hour)},
	}

	best, err := tieBreak(nil, nil, "", tied)
	assert.NoError(t, err)
	assert.Equal(t, "fresh", best.id)
}
