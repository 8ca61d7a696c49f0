package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/campuskit/advisor/internal/reliability"
)

// floorScore is the near-zero relevance below which a match is treated as
// noise rather than grounding.
const floorScore = 0.05

// Index is the persistent knowledge retriever backed by an embedded vector
// collection.
type Index struct {
	col      *chromem.Collection
	embedder Embedder
}

func NewIndex(embedder Embedder) (*Index, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection("knowledge", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create knowledge collection: %w", err)
	}
	return &Index{col: col, embedder: embedder}, nil
}

// Upsert adds or replaces one document in the index.
func (ix *Index) Upsert(ctx context.Context, doc Document) error {
	if doc.ID == "" || doc.Content == "" {
		return fmt.Errorf("document id and content are required")
	}
	embedding, err := ix.embedder.Embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embed document %s: %w", doc.ID, err)
	}
	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	err = ix.col.AddDocument(ctx, chromem.Document{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: embedding,
		Metadata: map[string]string{
			"source_ref": doc.SourceRef,
			"updated_at": updatedAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("add document %s: %w", doc.ID, err)
	}
	return nil
}

// Count reports how many documents the index holds.
func (ix *Index) Count() int {
	return ix.col.Count()
}

// Retrieve returns up to topK results above the floor score, sorted by score
// descending with ties broken by most-recent source.
func (ix *Index) Retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 5
	}
	count := ix.col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	embedding, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := ix.col.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, reliability.Transient("knowledge_index", err)
	}

	now := time.Now().UTC()
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		score := float64(m.Similarity)
		if score <= floorScore {
			continue
		}
		if score > 1 {
			score = 1
		}
		results = append(results, Result{
			Passage:     m.Content,
			SourceRef:   m.Metadata["source_ref"],
			SourceKind:  KindIndex,
			Score:       score,
			RetrievedAt: now,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return sourceUpdatedAt(matches, results[i].SourceRef).After(sourceUpdatedAt(matches, results[j].SourceRef))
	})

	return results, nil
}

func sourceUpdatedAt(matches []chromem.Result, sourceRef string) time.Time {
	for _, m := range matches {
		if m.Metadata["source_ref"] != sourceRef {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, m.Metadata["updated_at"]); err == nil {
			return ts
		}
	}
	return time.Time{}
}
