package catalog

import (
	"context"
	"fmt"

	"github.com/hupe1980/vecgo"
	"github.com/hupe1980/vecgo/distance"
)

// Index is an in-memory exact-search vector index over the catalog's
// embeddings. It stands in for the remote vector-search capability the
// production catalog exposes: cosine similarity, threshold cutoff,
// over-fetch count.
type Index struct {
	db  *vecgo.Vecgo[string]
	dim int
}

// NewIndex creates an empty flat cosine index for vectors of the given
// dimension.
func NewIndex(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid index dimension %d", dim)
	}

	db, err := vecgo.Flat[string](dim).Cosine().Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build vector index: %w", err)
	}
	return &Index{db: db, dim: dim}, nil
}

// Add inserts one embedding keyed by its catalog identifier. Vectors are
// L2-normalized before insertion; zero vectors are rejected.
func (ix *Index) Add(ctx context.Context, bagID string, vec []float32) error {
	if len(vec) != ix.dim {
		return fmt.Errorf("embedding for %s has dimension %d, index expects %d", bagID, len(vec), ix.dim)
	}

	normalized, ok := distance.NormalizeL2Copy(vec)
	if !ok {
		return fmt.Errorf("embedding for %s has zero norm", bagID)
	}

	_, err := ix.db.Insert(ctx, vecgo.VectorWithData[string]{
		Vector: normalized,
		Data:   bagID,
	})
	return err
}

// Search returns up to count matches with similarity at or above
// threshold, best first.
func (ix *Index) Search(ctx context.Context, query []float32, threshold float64, count int) ([]Match, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query has dimension %d, index expects %d", len(query), ix.dim)
	}

	normalized, ok := distance.NormalizeL2Copy(query)
	if !ok {
		return nil, fmt.Errorf("query embedding has zero norm")
	}

	results, err := ix.db.Search(normalized).KNN(count).Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		// Cosine distance is 1 - cosine similarity.
		similarity := 1 - float64(r.Distance)
		if similarity < threshold {
			continue
		}
		matches = append(matches, Match{BagID: r.Data, Similarity: similarity})
	}
	return matches, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}
