// Package segmenter talks to the segmentation model server. The model is
// a black box: image plus point prompts in, binary mask plus an optional
// confidence score out.
package segmenter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"time"

	"github.com/hyeonso/bagseek/internal/geometry"
)

// ErrUnavailable reports that the segmentation model is not configured or
// not reachable.
var ErrUnavailable = errors.New("segmentation model unavailable")

// Segmenter predicts a binary mask from click prompts.
type Segmenter interface {
	PredictMask(ctx context.Context, img image.Image, points [][2]float64, labels []int) (*geometry.Mask, *float64, error)
}

// Client is an HTTP client for a SAM-style model server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type predictRequest struct {
	Image  string       `json:"image"`
	Points [][2]float64 `json:"points"`
	Labels []int        `json:"labels"`
}

type predictResponse struct {
	Mask       string   `json:"mask"`
	Confidence *float64 `json:"iou"`
}

// PredictMask sends the image and one canonical prompt group to the model
// server and decodes the returned mask PNG. The mask may come back at a
// different size than the input image; callers re-sample before polygon
// extraction.
func (c *Client) PredictMask(ctx context.Context, img image.Image, points [][2]float64, labels []int) (*geometry.Mask, *float64, error) {
	if c.baseURL == "" {
		return nil, nil, ErrUnavailable
	}

	encoded, err := encodePNG(img)
	if err != nil {
		return nil, nil, err
	}

	body, err := json.Marshal(predictRequest{
		Image:  encoded,
		Points: points,
		Labels: labels,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: model server returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, fmt.Errorf("failed to decode predict response: %w", err)
	}

	maskBytes, err := base64.StdEncoding.DecodeString(out.Mask)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode mask payload: %w", err)
	}

	maskImg, err := png.Decode(bytes.NewReader(maskBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode mask image: %w", err)
	}

	return geometry.MaskFromImage(maskImg), out.Confidence, nil
}

func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
