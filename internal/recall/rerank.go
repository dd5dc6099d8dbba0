package recall

import "context"

// Reranker is a supplemental score-reordering hook. Recall's own contract
// never calls it; internal/reflect's search_observations/recall tool
// handlers may pass fused results through one to improve relevance before
// citing them, grounded on the original's cross-encoder rerank stage in
// recall.py without pulling a cross-encoder model dependency into this
// module. NoopReranker is the default and leaves ordering untouched.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []Result) ([]Result, error)
}

type NoopReranker struct{}

func (NoopReranker) Rerank(_ context.Context, _ string, results []Result) ([]Result, error) {
	return results, nil
}
