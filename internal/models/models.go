package models

import "time"

// Session binds an uploaded image and its most recent mask to an opaque token.
type Session struct {
	ID           string    `json:"id"`
	ImagePath    string    `json:"image_path"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Format       string    `json:"format"`
	LastMaskPath string    `json:"last_mask_path,omitempty"`
	MaskPaths    []string  `json:"mask_paths,omitempty"`
	LastAccess   time.Time `json:"last_access"`
}

// SessionInfo is the summary returned by GET /api/session/{id}.
type SessionInfo struct {
	SessionID  string    `json:"session_id"`
	ImagePath  string    `json:"image_path"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Format     string    `json:"format"`
	MaskCount  int       `json:"mask_count"`
	IsExpired  bool      `json:"is_expired"`
	LastAccess time.Time `json:"timestamp"`
}

// Bag is one catalog item. The catalog owns these records; this service
// only reads them and attaches a similarity score per ranking operation.
type Bag struct {
	ID         string  `json:"bag_id"`
	Name       string  `json:"bag_name"`
	Brand      string  `json:"brand"`
	Price      float64 `json:"price"`
	Material   string  `json:"material"`
	Color      string  `json:"color"`
	Category   string  `json:"category"`
	Link       string  `json:"link"`
	Thumbnail  string  `json:"thumbnail"`
	Detail     string  `json:"detail,omitempty"`
	Similarity float64 `json:"similarity"`
}

// SessionResponse is returned on image upload.
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	ImageInfo ImageInfo `json:"image_info"`
}

type ImageInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// PredictRequest carries the click prompts for one segmentation call.
type PredictRequest struct {
	SessionID string       `json:"session_id"`
	Points    PointPrompts `json:"points"`
	Labels    LabelPrompts `json:"labels"`
}

type PredictResponse struct {
	Contours   [][][2]float64 `json:"contours"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Confidence *float64       `json:"iou"`
}

type SearchRequest struct {
	SessionID      string   `json:"session_id"`
	SelectedColors []string `json:"selected_colors"`
}

type SearchResponse struct {
	Top5      []Bag `json:"top5"`
	Gallery10 []Bag `json:"gallery10"`
}

type FilterSearchRequest struct {
	SessionID          string   `json:"session_id,omitempty"`
	SelectedCategories []string `json:"selected_categories"`
	SelectedColors     []string `json:"selected_colors"`
	MinPrice           float64  `json:"min_price"`
	MaxPrice           float64  `json:"max_price"`
	Page               int      `json:"page"`
	Limit              int      `json:"limit"`
}

type FilterSearchResponse struct {
	Results     []Bag `json:"results"`
	TotalCount  int   `json:"total_count"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
}

type HealthResponse struct {
	Status       string `json:"status"`
	ModelReady   bool   `json:"model_loaded"`
	SessionCount int    `json:"session_count"`
}
