package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/hyeonso/bagseek/internal/geometry"
	"github.com/hyeonso/bagseek/internal/imaging"
	"github.com/hyeonso/bagseek/internal/models"
)

// HandlePredict runs one segmentation round: click prompts in, simplified
// polygon outlines out. The predicted mask is saved and recorded on the
// session for the search endpoints.
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Points) == 0 {
		h.writeError(w, "At least one point is required", http.StatusBadRequest)
		return
	}

	labels := []int(req.Labels)
	if len(labels) == 0 {
		// No labels means every click is a foreground prompt.
		labels = make([]int, len(req.Points))
		for i := range labels {
			labels[i] = 1
		}
	}
	if len(labels) != len(req.Points) {
		h.writeError(w, "points and labels must have the same length", http.StatusBadRequest)
		return
	}

	session, ok := h.getSessionOrError(w, req.SessionID)
	if !ok {
		return
	}

	img, err := imaging.LoadImage(session.ImagePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.writeError(w, "Image file not found", http.StatusNotFound)
		} else {
			h.writeError(w, "Failed to open session image: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	slog.Info("Predict request", "session_id", req.SessionID, "points", len(req.Points))

	mask, confidence, err := h.segmenter.PredictMask(r.Context(), img, req.Points, labels)
	if err != nil {
		h.writeError(w, "Segmentation failed: "+err.Error(), upstreamStatus(err))
		return
	}

	// The model does not always honor the input size.
	mask = mask.Resize(session.Width, session.Height)

	maskPath := filepath.Join(h.sessionsDir, fmt.Sprintf("%s_mask.png", req.SessionID))
	if err := imaging.SaveMask(maskPath, mask); err != nil {
		h.writeError(w, "Failed to save mask: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.sessionStore.SetLastMask(req.SessionID, maskPath); err != nil {
		// The session expired mid-request; a vanished session is a normal
		// outcome, not a server fault.
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}

	polys := geometry.ExtractPolygons(mask)

	contours := make([][][2]float64, 0, len(polys))
	for _, p := range polys {
		contours = append(contours, [][2]float64(p))
	}

	h.writeJSON(w, models.PredictResponse{
		Contours:   contours,
		Width:      session.Width,
		Height:     session.Height,
		Confidence: confidence,
	})
}
