package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyeonso/bagseek/internal/catalog"
	"github.com/hyeonso/bagseek/internal/config"
	"github.com/hyeonso/bagseek/internal/embedder"
	"github.com/hyeonso/bagseek/internal/handlers"
	"github.com/hyeonso/bagseek/internal/segmenter"
	"github.com/hyeonso/bagseek/internal/store"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the segmentation and similarity search API",
		Long: `Starts the Bagseek HTTP API on the specified port.

Dependencies are read from the environment: SAM_URL and CLIP_URL point at
the segmentation and embedding model servers, CATALOG_DB at the catalog
database produced by "bagseek ingest".`,
		Example: `  # Start server on default port 8000
  bagseek serve

  # Start server on custom port
  bagseek serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if port != "" {
				cfg.Port = port
			}

			cat, err := catalog.Open(cfg.CatalogDB)
			if err != nil {
				return err
			}
			defer func() {
				if err := cat.Close(); err != nil {
					slog.Error("Failed to close catalog", "err", err)
				}
			}()

			// Best effort: without an index the ranker's fallback path
			// still serves searches.
			if err := cat.BuildIndex(cmd.Context()); err != nil {
				slog.Warn("Vector index unavailable, searches will use the fallback path", "err", err)
			}

			sessionStore := store.New(cfg.SessionTTL, cfg.SweepInterval)
			defer sessionStore.Close()
			slog.Info("Session store initialized", "ttl", cfg.SessionTTL, "sweep", cfg.SweepInterval)

			handler := handlers.New(handlers.Options{
				SessionStore: sessionStore,
				Segmenter:    segmenter.NewClient(cfg.SAMURL),
				Embedder:     embedder.NewClient(cfg.CLIPURL),
				Catalog:      cat,
				SessionsDir:  cfg.SessionsDir,
				MaxImageSize: cfg.MaxImageSize,
				ModelReady:   cfg.SAMURL != "" && cfg.CLIPURL != "",
			})

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/session", handler.HandleSession)
			mux.HandleFunc("/api/session/", handler.HandleSessionDetail)
			mux.HandleFunc("/api/predict", handler.HandlePredict)
			mux.HandleFunc("/api/search", handler.HandleSearch)
			mux.HandleFunc("/api/filter-search", handler.HandleFilterSearch)
			mux.HandleFunc("/api/filter-search-with-similarity", handler.HandleFilterSearchWithSimilarity)
			mux.HandleFunc("/healthcheck", handler.HandleHealth)

			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Bagseek API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides PORT)")

	return cmd
}
