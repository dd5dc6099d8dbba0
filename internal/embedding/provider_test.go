package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedProvider_PreservesOrder(t *testing.T) {
	inner := NewLocalProvider()
	bp := NewBoundedProvider(inner, 2)

	texts := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	got, err := bp.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, got, len(texts))

	want, err := inner.Embed(context.Background(), texts)
	require.NoError(t, err)
	for i := range texts {
		assert.Equal(t, want[i], got[i], "vector at index %d should match direct embed", i)
	}
}

func TestBoundedProvider_RejectsEmptyString(t *testing.T) {
	bp := NewBoundedProvider(NewLocalProvider(), 5)
	_, err := bp.Embed(context.Background(), []string{"ok", ""})
	require.Error(t, err)
}

func TestLocalProvider_Deterministic(t *testing.T) {
	p := NewLocalProvider()
	a, err := p.Embed(context.Background(), []string{"the cat sat"})
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), []string{"the cat sat"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
