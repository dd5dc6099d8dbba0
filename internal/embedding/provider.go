// Package embedding provides the memory engine's embedding provider
// contract: order-preserving, concurrency-bounded, fail-loud on empty
// input. Grounded on the teacher's internal/embedding/models.go
// (EmbeddingModel interface, per-provider HTTP clients) generalized to the
// fixed 1024-d vector width spec.md §4.2 requires and extended with the
// hard concurrency cap the teacher's version lacked.
package embedding

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

const Dimension = 1024

// Provider embeds an ordered batch of texts into ordered 1024-d vectors.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// BoundedProvider wraps an underlying Provider with a process-wide
// concurrency cap, per spec.md §4.2 and §5 (embedding concurrency ≤ 5 by
// default). The underlying provider embeds one text per call; BoundedProvider
// fans the batch out under the semaphore and reassembles results in input
// order.
type BoundedProvider struct {
	inner Provider
	sem   *semaphore.Weighted
}

// NewBoundedProvider caps concurrent in-flight embed calls at maxConcurrent.
func NewBoundedProvider(inner Provider, maxConcurrent int64) *BoundedProvider {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &BoundedProvider{inner: inner, sem: semaphore.NewWeighted(maxConcurrent)}
}

// Embed validates input up front (fail loudly on empty strings, per
// spec.md §4.2), then fans each text out to the underlying provider under
// the semaphore, preserving order in the returned slice.
func (b *BoundedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	for i, t := range texts {
		if t == "" {
			return nil, fmt.Errorf("embedding: text at index %d is empty", i)
		}
	}
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	var wg sync.WaitGroup
	for i, t := range texts {
		if err := b.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("embedding: acquire: %w", err)
		}
		wg.Add(1)
		go func(idx int, text string) {
			defer wg.Done()
			defer b.sem.Release(1)

			vecs, err := b.inner.Embed(ctx, []string{text})
			if err != nil {
				errs[idx] = fmt.Errorf("embedding: %w", err)
				return
			}
			if len(vecs) != 1 {
				errs[idx] = fmt.Errorf("embedding: provider returned %d vectors for 1 text", len(vecs))
				return
			}
			results[idx] = vecs[0]
		}(i, t)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
