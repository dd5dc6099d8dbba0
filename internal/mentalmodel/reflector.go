package mentalmodel

import "context"

// Reflector is the bounded tool-use loop from C9 (spec.md §4.9) that
// Generate/Refresh call instead of a single tool-less LLM turn, so a mental
// model is written from actual retrieval rather than a one-shot
// summarization. Declared here instead of importing internal/reflect
// directly, since internal/reflect already imports this package for its
// search_mental_models tool handler; engine wires the concrete
// reflect.Service in through SetReflector once both are constructed, the
// same dependency-inversion pattern used for embedding.Provider and
// llmprovider.Provider elsewhere in this codebase.
type Reflector interface {
	Reflect(ctx context.Context, bankID, query string, maxIterations int) (string, error)
}
