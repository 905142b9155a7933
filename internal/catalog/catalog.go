// Package catalog provides read access to the bag catalog: metadata rows,
// stored CLIP embeddings, and an optional in-memory vector index serving
// the primary nearest-neighbour search path.
package catalog

import (
	"context"
	"errors"

	"github.com/hyeonso/bagseek/internal/filter"
	"github.com/hyeonso/bagseek/internal/models"
)

// ErrVectorSearchUnavailable signals that the primary nearest-neighbour
// path cannot serve the query. Callers fall back to brute-force scoring;
// the condition is logged, never surfaced to the end user.
var ErrVectorSearchUnavailable = errors.New("vector search unavailable")

// Match pairs a catalog item identifier with a similarity score.
type Match struct {
	BagID      string
	Similarity float64
}

// EmbeddingRow is one stored embedding. Vector is nil when the stored
// value could not be parsed; rankers degrade such rows to a zero score.
type EmbeddingRow struct {
	BagID  string
	Vector []float32
}

// Store is the catalog boundary consumed by the ranking engine.
type Store interface {
	// VectorSearch returns up to count matches with similarity at or above
	// threshold, best first.
	VectorSearch(ctx context.Context, query []float32, threshold float64, count int) ([]Match, error)

	// BulkEmbeddings fetches stored embeddings for the inclusive row range
	// [start, end] in stable bag_id order.
	BulkEmbeddings(ctx context.Context, start, end int) ([]EmbeddingRow, error)

	// Embedding fetches the stored embedding for one item.
	Embedding(ctx context.Context, bagID string) ([]float32, error)

	// FetchMetadata fetches catalog rows for the given identifiers,
	// dropping rows that fail the optional filter.
	FetchMetadata(ctx context.Context, bagIDs []string, f *filter.Filter) ([]models.Bag, error)

	// FilteredBags fetches up to limit rows matching the filter.
	FilteredBags(ctx context.Context, f filter.Filter, limit int) ([]models.Bag, error)

	// FilteredPage fetches one page of rows matching the filter, in
	// stable bag_id order.
	FilteredPage(ctx context.Context, f filter.Filter, offset, limit int) ([]models.Bag, error)

	// CountMatching reports how many rows match the filter.
	CountMatching(ctx context.Context, f filter.Filter) (int, error)
}
