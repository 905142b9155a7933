// Package ranker orders catalog items by visual similarity to a query
// embedding. The primary path delegates to the catalog's vector search;
// when that is unavailable the ranker falls back to bounded brute-force
// cosine scoring over bulk-fetched embedding pages.
package ranker

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/hupe1980/vecgo/distance"

	"github.com/hyeonso/bagseek/internal/catalog"
	"github.com/hyeonso/bagseek/internal/filter"
	"github.com/hyeonso/bagseek/internal/models"
)

const (
	// VectorSearchThreshold is the minimum similarity the primary path
	// asks the catalog for.
	VectorSearchThreshold = 0.1
	// VectorSearchCount over-fetches so downstream filtering and
	// deduplication still leave enough results.
	VectorSearchCount = 50

	// Fallback bounds. The brute-force path pages through stored
	// embeddings and stops at FallbackTargetUnique unique identifiers or
	// FallbackMaxPages pages, whichever comes first. Tunable: heavy
	// duplication across pages can under-sample the catalog.
	FallbackPageSize     = 1000
	FallbackMaxPages     = 3
	FallbackTargetUnique = 50

	// MaxResults caps the unfiltered flow; TopCount of those form the
	// top slice, the remainder the gallery.
	MaxResults = 15
	TopCount   = 5
)

type Ranker struct {
	catalog catalog.Store
}

func New(c catalog.Store) *Ranker {
	return &Ranker{catalog: c}
}

// scored preserves first-seen order alongside the score map so equal
// scores sort stably by discovery order rather than by anything
// score-derived.
type scored struct {
	ids    []string
	scores map[string]float64
}

func newScored() *scored {
	return &scored{scores: make(map[string]float64)}
}

// add records a score for an identifier unless one was already seen.
// First seen wins; a second scoring pass never overwrites the first.
func (s *scored) add(id string, score float64) {
	if _, ok := s.scores[id]; ok {
		return
	}
	s.ids = append(s.ids, id)
	s.scores[id] = score
}

func (s *scored) len() int { return len(s.ids) }

// sortedIDs returns identifiers by descending score, ties in first-seen
// order.
func (s *scored) sortedIDs() []string {
	ids := append([]string(nil), s.ids...)
	sort.SliceStable(ids, func(i, j int) bool {
		return s.scores[ids[i]] > s.scores[ids[j]]
	})
	return ids
}

// Rank produces the unfiltered search result: up to MaxResults unique
// items by descending similarity, split into a top slice and a gallery
// slice. The optional filter is applied at the metadata-fetch stage, so
// the final list may hold fewer than MaxResults items.
func (r *Ranker) Rank(ctx context.Context, embedding []float32, f *filter.Filter) (models.SearchResponse, error) {
	s := newScored()

	matches, err := r.catalog.VectorSearch(ctx, embedding, VectorSearchThreshold, VectorSearchCount)
	switch {
	case err != nil:
		slog.Warn("Vector search failed, falling back to local similarity", "err", err)
		if err := r.fallbackScore(ctx, embedding, s); err != nil {
			return models.SearchResponse{}, err
		}
	case len(matches) == 0:
		// An empty primary result gets the same treatment as a failed one,
		// so the brute-force path still surfaces whatever the catalog has.
		slog.Warn("Vector search returned no matches, falling back to local similarity")
		if err := r.fallbackScore(ctx, embedding, s); err != nil {
			return models.SearchResponse{}, err
		}
	default:
		for _, m := range matches {
			s.add(m.BagID, clamp01(m.Similarity))
		}
	}

	ranked := s.sortedIDs()
	if len(ranked) > MaxResults {
		ranked = ranked[:MaxResults]
	}

	bags, err := r.catalog.FetchMetadata(ctx, ranked, f)
	if err != nil {
		return models.SearchResponse{}, err
	}

	byID := make(map[string]models.Bag, len(bags))
	for _, b := range bags {
		byID[b.ID] = b
	}

	results := make([]models.Bag, 0, len(ranked))
	for _, id := range ranked {
		b, ok := byID[id]
		if !ok {
			// Filtered out or missing metadata: drop silently, a shorter
			// list is preferred over failing the search.
			continue
		}
		b.Similarity = s.scores[id]
		results = append(results, b)
	}

	resp := models.SearchResponse{Top5: []models.Bag{}, Gallery10: []models.Bag{}}
	if len(results) > TopCount {
		resp.Top5 = results[:TopCount]
		resp.Gallery10 = results[TopCount:]
	} else {
		resp.Top5 = results
	}
	return resp, nil
}

// fallbackScore pages through stored embeddings computing cosine
// similarity locally. Identifiers already scored are skipped; the loop
// stops once enough unique identifiers are scored or the page budget is
// spent.
func (r *Ranker) fallbackScore(ctx context.Context, embedding []float32, s *scored) error {
	for page := 0; page < FallbackMaxPages; page++ {
		start := page * FallbackPageSize
		rows, err := r.catalog.BulkEmbeddings(ctx, start, start+FallbackPageSize-1)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			if _, ok := s.scores[row.BagID]; ok {
				continue
			}
			s.add(row.BagID, cosineSimilarity(embedding, row.Vector))
		}

		if s.len() >= FallbackTargetUnique {
			break
		}
	}
	return nil
}

// RankFiltered scores a pre-filtered candidate set and paginates the
// sorted result. The filter already bounds the candidates, so every one
// is scored; no early stop.
func (r *Ranker) RankFiltered(ctx context.Context, embedding []float32, f filter.Filter, page, limit int) ([]models.Bag, int, error) {
	candidates, err := r.catalog.FilteredBags(ctx, f, filter.MaxPageSize)
	if err != nil {
		return nil, 0, err
	}
	if len(candidates) == 0 {
		return []models.Bag{}, 0, nil
	}

	scoredBags := make([]models.Bag, len(candidates))
	for i, b := range candidates {
		vec, err := r.catalog.Embedding(ctx, b.ID)
		if err != nil {
			// Missing or malformed embedding degrades this one item, not
			// the whole ranking.
			slog.Warn("Degrading item to zero similarity", "bag_id", b.ID, "err", err)
			b.Similarity = 0
		} else {
			b.Similarity = cosineSimilarity(embedding, vec)
		}
		scoredBags[i] = b
	}

	sort.SliceStable(scoredBags, func(i, j int) bool {
		return scoredBags[i].Similarity > scoredBags[j].Similarity
	})

	total := len(scoredBags)
	page = filter.NormalizePage(page)
	limit = filter.NormalizeLimit(limit)

	start := (page - 1) * limit
	if start >= total {
		return []models.Bag{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return scoredBags[start:end], total, nil
}

// cosineSimilarity returns the clipped cosine similarity of two vectors.
// Dimension mismatches, nil vectors, and zero norms all degrade to 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	dot := float64(distance.Dot(a, b))
	normA := math.Sqrt(float64(distance.Dot(a, a)))
	normB := math.Sqrt(float64(distance.Dot(b, b)))
	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp01(dot / (normA * normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
