package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/hyeonso/bagseek/internal/catalog"
	"github.com/hyeonso/bagseek/internal/embedder"
	"github.com/hyeonso/bagseek/internal/models"
	"github.com/hyeonso/bagseek/internal/ranker"
	"github.com/hyeonso/bagseek/internal/segmenter"
	"github.com/hyeonso/bagseek/internal/store"
)

// Handler carries every dependency the request handlers need. It is
// constructed once at startup; nothing here is ambient global state.
type Handler struct {
	sessionStore *store.Store
	segmenter    segmenter.Segmenter
	embedder     embedder.Embedder
	catalog      catalog.Store
	ranker       *ranker.Ranker

	sessionsDir  string
	maxImageSize int
	modelReady   bool
}

type Options struct {
	SessionStore *store.Store
	Segmenter    segmenter.Segmenter
	Embedder     embedder.Embedder
	Catalog      catalog.Store
	SessionsDir  string
	MaxImageSize int
	ModelReady   bool
}

func New(opts Options) *Handler {
	return &Handler{
		sessionStore: opts.SessionStore,
		segmenter:    opts.Segmenter,
		embedder:     opts.Embedder,
		catalog:      opts.Catalog,
		ranker:       ranker.New(opts.Catalog),
		sessionsDir:  opts.SessionsDir,
		maxImageSize: opts.MaxImageSize,
		modelReady:   opts.ModelReady,
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (models.Session, bool) {
	session, err := h.sessionStore.Get(sessionID)
	if err != nil {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return models.Session{}, false
	}
	return session, true
}

// upstreamStatus maps client errors to an HTTP status: unavailable models
// are a 503, everything else an internal error.
func upstreamStatus(err error) int {
	if errors.Is(err, segmenter.ErrUnavailable) || errors.Is(err, embedder.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) ensureSessionsDir() error {
	return os.MkdirAll(h.sessionsDir, 0755)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, models.HealthResponse{
		Status:       "healthy",
		ModelReady:   h.modelReady,
		SessionCount: h.sessionStore.Count(),
	})
}
