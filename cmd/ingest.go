package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hyeonso/bagseek/internal/catalog"
	"github.com/hyeonso/bagseek/internal/config"
	"github.com/hyeonso/bagseek/internal/embedder"
	"github.com/hyeonso/bagseek/internal/imaging"
	"github.com/hyeonso/bagseek/internal/models"
)

// bagRecord mirrors one row of the catalog dump.
type bagRecord struct {
	BagID     string  `parquet:"bag_id"`
	BagName   string  `parquet:"bag_name"`
	Brand     string  `parquet:"brand"`
	Price     float64 `parquet:"price"`
	Material  string  `parquet:"material"`
	Color     string  `parquet:"color"`
	Category  string  `parquet:"category"`
	Link      string  `parquet:"link"`
	Thumbnail string  `parquet:"thumbnail"`
	Detail    string  `parquet:"detail"`
}

func newIngestCmd() *cobra.Command {
	var (
		dbPath      string
		embed       bool
		concurrency int
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "ingest <catalog.parquet>",
		Short: "Load a catalog dump into the search database",
		Long: `Reads a Parquet catalog dump and upserts every row into the catalog
database used by "bagseek serve".

With --embed, each item's thumbnail is fetched and run through the CLIP
model server (CLIP_URL) so the vector index can be built at serve time.`,
		Example: `  # Load catalog metadata only
  bagseek ingest bags.parquet

  # Load catalog and compute thumbnail embeddings
  bagseek ingest bags.parquet --embed --concurrency 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if dbPath == "" {
				dbPath = cfg.CatalogDB
			}

			records, err := loadCatalogDump(args[0], limit)
			if err != nil {
				return err
			}
			slog.Info("Catalog dump loaded", "path", args[0], "records", len(records))

			cat, err := catalog.Open(dbPath)
			if err != nil {
				return err
			}
			defer func() {
				if err := cat.Close(); err != nil {
					slog.Error("Failed to close catalog", "err", err)
				}
			}()

			ctx := cmd.Context()
			for i, rec := range records {
				bag := models.Bag{
					ID:        rec.BagID,
					Name:      rec.BagName,
					Brand:     rec.Brand,
					Price:     rec.Price,
					Material:  rec.Material,
					Color:     rec.Color,
					Category:  rec.Category,
					Link:      rec.Link,
					Thumbnail: rec.Thumbnail,
					Detail:    rec.Detail,
				}
				if err := cat.InsertBag(ctx, bag); err != nil {
					return fmt.Errorf("failed to insert bag %s: %w", rec.BagID, err)
				}
				if (i+1)%1000 == 0 {
					slog.Info("Inserting catalog rows", "inserted", i+1, "total", len(records))
				}
			}
			slog.Info("Catalog rows inserted", "count", len(records))

			if !embed {
				return nil
			}
			if cfg.CLIPURL == "" {
				return fmt.Errorf("--embed requires CLIP_URL to be set")
			}

			return embedThumbnails(ctx, cat, embedder.NewClient(cfg.CLIPURL), records, concurrency)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Catalog database path (overrides CATALOG_DB)")
	cmd.Flags().BoolVar(&embed, "embed", false, "Fetch thumbnails and store CLIP embeddings")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Concurrent thumbnail embeddings")
	cmd.Flags().IntVar(&limit, "limit", 0, "Only ingest the first N records (0 = all)")

	return cmd
}

// loadCatalogDump reads the Parquet dump in batches. A non-positive limit
// reads every row.
func loadCatalogDump(path string, limit int) ([]bagRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog dump: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat catalog dump: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet file opened", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[bagRecord](pf)
	defer reader.Close()

	var records []bagRecord
	rows := make([]bagRecord, 128) // Read in batches

	for limit <= 0 || len(records) < limit {
		n, err := reader.Read(rows)
		if n > 0 {
			if limit > 0 && len(records)+n > limit {
				n = limit - len(records)
			}
			records = append(records, rows[:n]...)
		}
		if err != nil {
			break
		}
	}

	return records, nil
}

// embedThumbnails downloads each item's thumbnail, embeds it, and stores
// the vector. Individual failures are logged and skipped so one dead
// image URL does not abort a long ingest run.
func embedThumbnails(ctx context.Context, cat *catalog.SQL, emb embedder.Embedder, records []bagRecord, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}

	client := &http.Client{Timeout: 30 * time.Second}

	var done, failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, rec := range records {
		if rec.Thumbnail == "" {
			continue
		}
		g.Go(func() error {
			if err := embedOne(ctx, cat, emb, client, rec); err != nil {
				failed.Add(1)
				slog.Warn("Skipping thumbnail embedding", "bag_id", rec.BagID, "err", err)
				return nil
			}
			if n := done.Add(1); n%100 == 0 {
				slog.Info("Embedding thumbnails", "embedded", n, "total", len(records))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Thumbnail embeddings stored", "embedded", done.Load(), "failed", failed.Load())
	return nil
}

func embedOne(ctx context.Context, cat *catalog.SQL, emb embedder.Embedder, client *http.Client, rec bagRecord) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rec.Thumbnail, nil)
	if err != nil {
		return fmt.Errorf("bad thumbnail url: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("thumbnail fetch returned status %d", resp.StatusCode)
	}

	img, _, err := imaging.Decode(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to decode thumbnail: %w", err)
	}

	vec, err := emb.Embed(ctx, imaging.FlattenToRGB(img))
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	return cat.InsertEmbedding(ctx, rec.BagID, vec)
}
