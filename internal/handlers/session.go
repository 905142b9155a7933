package handlers

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hyeonso/bagseek/internal/imaging"
	"github.com/hyeonso/bagseek/internal/models"
	"github.com/hyeonso/bagseek/internal/store"
)

// HandleSession creates a session from an uploaded image.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	fileData, err := io.ReadAll(io.LimitReader(file, imaging.MaxUploadBytes+1))
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if len(fileData) == 0 {
		h.writeError(w, "Empty file", http.StatusBadRequest)
		return
	}
	if len(fileData) > imaging.MaxUploadBytes {
		h.writeError(w, "File too large (max 15MB)", http.StatusBadRequest)
		return
	}

	img, format, err := imaging.Decode(bytes.NewReader(fileData))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch format {
	case "jpeg", "png", "webp", "gif":
	default:
		h.writeError(w, "Unsupported image format: "+format, http.StatusUnsupportedMediaType)
		return
	}

	if err := h.ensureSessionsDir(); err != nil {
		h.writeError(w, "Failed to create sessions directory: "+err.Error(), http.StatusInternalServerError)
		return
	}

	processed := imaging.Downscale(imaging.FlattenToRGB(img), h.maxImageSize)
	bounds := processed.Bounds()

	// The image file and the session share the same token so predict and
	// search can find the file from the session alone.
	sessionID := uuid.NewString()
	imagePath := filepath.Join(h.sessionsDir, sessionID+".png")
	if err := imaging.SavePNG(imagePath, processed); err != nil {
		h.writeError(w, "Failed to save image: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if _, err := h.sessionStore.Create(store.Metadata{
		ImagePath: imagePath,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Format:    strings.ToUpper(format),
	}, sessionID); err != nil {
		h.writeError(w, "Failed to create session: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, models.SessionResponse{
		SessionID: sessionID,
		ImageInfo: models.ImageInfo{
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
			Format: strings.ToUpper(format),
		},
	})
}

// HandleSessionDetail serves GET (summary) and DELETE for one session.
func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/api/session/")
	if sessionID == "" {
		h.writeError(w, "Session id required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case "GET":
		info, err := h.sessionStore.Info(sessionID)
		if err != nil {
			h.writeError(w, "Session not found", http.StatusNotFound)
			return
		}
		h.writeJSON(w, info)
	case "DELETE":
		if err := h.sessionStore.Delete(sessionID); err != nil {
			h.writeError(w, "Session not found", http.StatusNotFound)
			return
		}
		h.writeJSON(w, map[string]string{"message": "Session deleted successfully"})
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
