package reflect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampMaxResults_UsesDefaultWhenAbsent(t *testing.T) {
	assert.Equal(t, 20, clampMaxResults(map[string]any{}, 20, 50))
}

func TestClampMaxResults_ClampsToCeiling(t *testing.T) {
	assert.Equal(t, 50, clampMaxResults(map[string]any{"max_results": float64(500)}, 20, 50))
}

func TestClampMaxResults_HonorsRequestedValueUnderCeiling(t *testing.T) {
	assert.Equal(t, 7, clampMaxResults(map[string]any{"max_results": float64(7)}, 20, 50))
}

func TestStringSliceInput_ExtractsStringsOnly(t *testing.T) {
	got := stringSliceInput(map[string]any{"tags": []any{"vip", 3, "eu"}}, "tags")
	assert.Equal(t, []string{"vip", "eu"}, got)
}

func TestStringSliceInput_MissingKeyIsNil(t *testing.T) {
	assert.Nil(t, stringSliceInput(map[string]any{}, "tags"))
}
