package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/hyeonso/bagseek/internal/filter"
	"github.com/hyeonso/bagseek/internal/imaging"
	"github.com/hyeonso/bagseek/internal/models"
)

// HandleSearch embeds the session's masked region and returns the
// unfiltered similarity ranking split into top and gallery slices.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	embedding, ok := h.sessionEmbedding(r.Context(), w, req.SessionID)
	if !ok {
		return
	}

	var f *filter.Filter
	if len(req.SelectedColors) > 0 {
		composed := filter.New(nil, req.SelectedColors, 0, 0)
		f = &composed
	}

	resp, err := h.ranker.Rank(r.Context(), embedding, f)
	if err != nil {
		h.writeError(w, "Search failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, resp)
}

// sessionEmbedding loads the session's image and latest mask, crops the
// masked region onto a white background, and embeds it. Errors are
// written to the response; the bool reports success.
func (h *Handler) sessionEmbedding(ctx context.Context, w http.ResponseWriter, sessionID string) ([]float32, bool) {
	session, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return nil, false
	}

	if session.LastMaskPath == "" {
		h.writeError(w, "No mask found. Please segment the image first.", http.StatusBadRequest)
		return nil, false
	}

	img, err := imaging.LoadImage(session.ImagePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.writeError(w, "Image not found", http.StatusNotFound)
		} else {
			h.writeError(w, "Failed to open session image: "+err.Error(), http.StatusInternalServerError)
		}
		return nil, false
	}

	mask, err := imaging.LoadMask(session.LastMaskPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.writeError(w, "Mask not found", http.StatusNotFound)
		} else {
			h.writeError(w, "Failed to open session mask: "+err.Error(), http.StatusInternalServerError)
		}
		return nil, false
	}

	cropped, err := imaging.CropMasked(img, mask)
	if err != nil {
		if errors.Is(err, imaging.ErrEmptyRegion) {
			h.writeError(w, "Mask is empty", http.StatusBadRequest)
		} else {
			h.writeError(w, "Failed to crop masked region: "+err.Error(), http.StatusInternalServerError)
		}
		return nil, false
	}

	embedding, err := h.embedder.Embed(ctx, cropped)
	if err != nil {
		h.writeError(w, "Embedding failed: "+err.Error(), upstreamStatus(err))
		return nil, false
	}

	return embedding, true
}
