package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// LocalProvider is a deterministic, dependency-free embedding provider for
// tests and offline operation. It hashes n-grams of the input text into a
// fixed-width vector and L2-normalizes it, so identical text always
// produces an identical vector and near-identical text tends to produce
// vectors with high cosine similarity — enough to exercise dedup and
// recall logic without a network call.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider { return &LocalProvider{} }

func (LocalProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashEmbed(t)
	}
	return out, nil
}

func hashEmbed(text string) []float32 {
	vec := make([]float32, Dimension)
	if text == "" {
		return vec
	}

	window := 3
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		end := i + window
		if end > len(runes) {
			end = len(runes)
		}
		gram := string(runes[i:end])

		h := fnv.New32a()
		_, _ = h.Write([]byte(gram))
		bucket := int(h.Sum32() % uint32(Dimension))
		vec[bucket] += 1.0
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
