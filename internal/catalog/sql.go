package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hyeonso/bagseek/internal/filter"
	"github.com/hyeonso/bagseek/internal/models"
)

// bagRow mirrors the bags table.
type bagRow struct {
	BagID     string  `gorm:"column:bag_id;primaryKey"`
	BagName   string  `gorm:"column:bag_name"`
	Brand     string  `gorm:"column:brand"`
	Price     float64 `gorm:"column:price"`
	Material  string  `gorm:"column:material"`
	Color     string  `gorm:"column:color"`
	Category  string  `gorm:"column:category"`
	Link      string  `gorm:"column:link"`
	Thumbnail string  `gorm:"column:thumbnail"`
	Detail    string  `gorm:"column:detail"`
}

func (bagRow) TableName() string { return "bags" }

// embeddingRow mirrors the image_embeddings table. Embeddings are stored
// as JSON float arrays, the same wire format the ingestion job writes.
type embeddingRow struct {
	BagID string `gorm:"column:bag_id;primaryKey"`
	Embed string `gorm:"column:embed"`
}

func (embeddingRow) TableName() string { return "image_embeddings" }

// SQL is the sqlite-backed catalog store. An optional vector index serves
// the primary search path; without one VectorSearch reports
// ErrVectorSearchUnavailable and rankers fall back to brute force.
type SQL struct {
	db    *gorm.DB
	index *Index
}

// Open opens (and migrates) the catalog database at path.
func Open(path string) (*SQL, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog db: %w", err)
	}

	if err := db.AutoMigrate(&bagRow{}, &embeddingRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate catalog db: %w", err)
	}

	return &SQL{db: db}, nil
}

func (s *SQL) Close() error {
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			slog.Warn("Failed to close vector index", "err", err)
		}
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// BuildIndex loads every stored embedding into an in-memory vector index.
// Best effort: a catalog without embeddings simply leaves the primary
// search path unavailable.
func (s *SQL) BuildIndex(ctx context.Context) error {
	var rows []embeddingRow
	if err := s.db.WithContext(ctx).Order("bag_id").Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load embeddings: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no embeddings to index")
	}

	var ix *Index
	added := 0
	for _, row := range rows {
		vec, err := decodeVector(row.Embed)
		if err != nil {
			slog.Warn("Skipping unparsable embedding", "bag_id", row.BagID, "err", err)
			continue
		}
		if ix == nil {
			ix, err = NewIndex(len(vec))
			if err != nil {
				return err
			}
		}
		if err := ix.Add(ctx, row.BagID, vec); err != nil {
			slog.Warn("Failed to index embedding", "bag_id", row.BagID, "err", err)
			continue
		}
		added++
	}
	if ix == nil {
		return fmt.Errorf("no usable embeddings to index")
	}

	s.index = ix
	slog.Info("Vector index ready", "vectors", added)
	return nil
}

func (s *SQL) VectorSearch(ctx context.Context, query []float32, threshold float64, count int) ([]Match, error) {
	if s.index == nil {
		return nil, ErrVectorSearchUnavailable
	}
	return s.index.Search(ctx, query, threshold, count)
}

func (s *SQL) BulkEmbeddings(ctx context.Context, start, end int) ([]EmbeddingRow, error) {
	if end < start {
		return nil, fmt.Errorf("invalid embedding range [%d, %d]", start, end)
	}

	var rows []embeddingRow
	err := s.db.WithContext(ctx).
		Order("bag_id").
		Offset(start).
		Limit(end - start + 1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch embeddings: %w", err)
	}

	out := make([]EmbeddingRow, 0, len(rows))
	for _, row := range rows {
		vec, err := decodeVector(row.Embed)
		if err != nil {
			slog.Warn("Unparsable stored embedding", "bag_id", row.BagID, "err", err)
			vec = nil
		}
		out = append(out, EmbeddingRow{BagID: row.BagID, Vector: vec})
	}
	return out, nil
}

func (s *SQL) Embedding(ctx context.Context, bagID string) ([]float32, error) {
	var row embeddingRow
	if err := s.db.WithContext(ctx).Where("bag_id = ?", bagID).First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch embedding for %s: %w", bagID, err)
	}
	return decodeVector(row.Embed)
}

func (s *SQL) FetchMetadata(ctx context.Context, bagIDs []string, f *filter.Filter) ([]models.Bag, error) {
	if len(bagIDs) == 0 {
		return nil, nil
	}

	tx := s.db.WithContext(ctx).Where("bag_id IN ?", bagIDs)
	if f != nil {
		tx = applyFilter(tx, *f)
	}

	var rows []bagRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch metadata: %w", err)
	}
	return toBags(rows), nil
}

func (s *SQL) FilteredBags(ctx context.Context, f filter.Filter, limit int) ([]models.Bag, error) {
	tx := applyFilter(s.db.WithContext(ctx), f).Order("bag_id")
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var rows []bagRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch filtered bags: %w", err)
	}
	return toBags(rows), nil
}

func (s *SQL) FilteredPage(ctx context.Context, f filter.Filter, offset, limit int) ([]models.Bag, error) {
	tx := applyFilter(s.db.WithContext(ctx), f).Order("bag_id").Offset(offset).Limit(limit)

	var rows []bagRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch filtered page: %w", err)
	}
	return toBags(rows), nil
}

func (s *SQL) CountMatching(ctx context.Context, f filter.Filter) (int, error) {
	var count int64
	tx := applyFilter(s.db.WithContext(ctx).Model(&bagRow{}), f)
	if err := tx.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count bags: %w", err)
	}
	return int(count), nil
}

// InsertBag upserts one catalog row. Used by the ingestion command.
func (s *SQL) InsertBag(ctx context.Context, b models.Bag) error {
	row := bagRow{
		BagID:     b.ID,
		BagName:   b.Name,
		Brand:     b.Brand,
		Price:     b.Price,
		Material:  b.Material,
		Color:     b.Color,
		Category:  b.Category,
		Link:      b.Link,
		Thumbnail: b.Thumbnail,
		Detail:    b.Detail,
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

// InsertEmbedding upserts one stored embedding.
func (s *SQL) InsertEmbedding(ctx context.Context, bagID string, vec []float32) error {
	encoded, err := encodeVector(vec)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(&embeddingRow{BagID: bagID, Embed: encoded}).Error
}

// applyFilter translates the composed filter into WHERE fragments: exact
// category match, case-insensitive color substring OR-chain, and price
// bounds only when they differ from the declared defaults.
func applyFilter(tx *gorm.DB, f filter.Filter) *gorm.DB {
	if len(f.Categories) > 0 {
		tx = tx.Where("category IN ?", f.Categories)
	}

	if len(f.Colors) > 0 {
		conds := make([]string, 0, len(f.Colors))
		args := make([]any, 0, len(f.Colors))
		for _, c := range f.Colors {
			conds = append(conds, "LOWER(color) LIKE ?")
			args = append(args, "%"+strings.ToLower(c)+"%")
		}
		tx = tx.Where(strings.Join(conds, " OR "), args...)
	}

	min, max := f.PriceBounds()
	if min != nil {
		tx = tx.Where("price >= ?", *min)
	}
	if max != nil {
		tx = tx.Where("price <= ?", *max)
	}

	return tx
}

func toBags(rows []bagRow) []models.Bag {
	out := make([]models.Bag, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Bag{
			ID:        r.BagID,
			Name:      r.BagName,
			Brand:     r.Brand,
			Price:     r.Price,
			Material:  r.Material,
			Color:     r.Color,
			Category:  r.Category,
			Link:      r.Link,
			Thumbnail: r.Thumbnail,
			Detail:    r.Detail,
		})
	}
	return out
}

func encodeVector(vec []float32) (string, error) {
	b, err := json.Marshal(vec)
	if err != nil {
		return "", fmt.Errorf("failed to encode embedding: %w", err)
	}
	return string(b), nil
}

func decodeVector(encoded string) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(encoded), &vec); err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	return vec, nil
}
