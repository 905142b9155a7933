package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/hyeonso/bagseek/internal/filter"
	"github.com/hyeonso/bagseek/internal/models"
)

// plainFilterSimilarity is reported for results of the plain filter
// search: the catalog carries no similarity column and the client expects
// a value in every row.
const plainFilterSimilarity = 0.85

// HandleFilterSearch serves the plain (no embedding) filtered catalog
// search with pagination.
func (h *Handler) HandleFilterSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.FilterSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	f := filter.New(req.SelectedCategories, req.SelectedColors, req.MinPrice, req.MaxPrice)
	page := filter.NormalizePage(req.Page)
	limit := filter.NormalizeLimit(req.Limit)

	results, err := h.catalog.FilteredPage(r.Context(), f, (page-1)*limit, limit)
	if err != nil {
		h.writeError(w, "Filter search failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	total, err := h.catalog.CountMatching(r.Context(), f)
	if err != nil {
		h.writeError(w, "Filter search failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	for i := range results {
		results[i].Similarity = plainFilterSimilarity
	}

	h.writeJSON(w, models.FilterSearchResponse{
		Results:     results,
		TotalCount:  total,
		TotalPages:  filter.TotalPages(total, limit),
		CurrentPage: page,
	})
}

// HandleFilterSearchWithSimilarity ranks the filtered candidate set by
// similarity to the session's masked region, then paginates.
func (h *Handler) HandleFilterSearchWithSimilarity(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.FilterSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	embedding, ok := h.sessionEmbedding(r.Context(), w, req.SessionID)
	if !ok {
		return
	}

	f := filter.New(req.SelectedCategories, req.SelectedColors, req.MinPrice, req.MaxPrice)
	page := filter.NormalizePage(req.Page)
	limit := filter.NormalizeLimit(req.Limit)

	results, total, err := h.ranker.RankFiltered(r.Context(), embedding, f, page, limit)
	if err != nil {
		h.writeError(w, "Similarity filter search failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, models.FilterSearchResponse{
		Results:     results,
		TotalCount:  total,
		TotalPages:  filter.TotalPages(total, limit),
		CurrentPage: page,
	})
}
