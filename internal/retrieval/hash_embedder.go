package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder produces stable, corpus-free embeddings without any model
// dependency. It hashes word tokens into a fixed number of buckets, so texts
// sharing vocabulary land near each other under cosine similarity. Used when
// no embedding endpoint is configured, and throughout the tests.
type HashEmbedder struct {
	dimensions int
}

func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{dimensions: 384}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,;:!?\"'()[]")
		if token == "" {
			continue
		}
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()
		vec[sum%uint64(e.dimensions)] += 1
		// A second signed bucket reduces collisions between small token sets.
		if sum>>32&1 == 1 {
			vec[(sum>>8)%uint64(e.dimensions)] -= 0.5
		} else {
			vec[(sum>>8)%uint64(e.dimensions)] += 0.5
		}
	}
	return normalize(vec), nil
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
