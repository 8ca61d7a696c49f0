package retrieval

import (
	"context"
	"time"
)

// Source kinds carried through to turn citations.
const (
	KindIndex = "index"
	KindWeb   = "web"
)

// Result is a single grounding passage with its relevance score in [0,1].
type Result struct {
	Passage     string
	SourceRef   string
	SourceKind  string
	Score       float64
	RetrievedAt time.Time
}

// Document is an indexable knowledge passage.
type Document struct {
	ID        string
	Content   string
	SourceRef string
	UpdatedAt time.Time
}

// Retriever returns the top-k most relevant passages for a query, sorted by
// score descending. An empty slice means "no grounding", not failure;
// provider failures are returned as errors (transient when retryable).
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Result, error)
}

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
