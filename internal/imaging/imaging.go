// Package imaging handles the image plumbing around the core pipeline:
// upload decoding, white-background flattening, downscaling, mask PNG
// round-trips, and cropping the masked region before embedding.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/hyeonso/bagseek/internal/geometry"
)

// ErrEmptyRegion reports a mask with no foreground pixels at search time.
var ErrEmptyRegion = errors.New("mask is empty")

// MaxUploadBytes bounds uploaded image files.
const MaxUploadBytes = 15 * 1024 * 1024

// Decode reads and decodes an uploaded image, returning the normalized
// format name (e.g. "png", "jpeg", "webp").
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image: %w", err)
	}
	return img, format, nil
}

// FlattenToRGB converts any decoded image to RGB over a white background,
// so transparent regions embed the same way the catalog thumbnails were
// embedded.
func FlattenToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

// Downscale resizes the image so its longest side is at most maxSize,
// preserving aspect ratio. Images already small enough pass through.
func Downscale(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSize && h <= maxSize {
		return img
	}

	var nw, nh int
	if w > h {
		nw = maxSize
		nh = h * maxSize / w
	} else {
		nh = maxSize
		nw = w * maxSize / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// SavePNG writes the image as PNG.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

// LoadImage decodes the image file at path.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// SaveMask writes the mask as an 8-bit grayscale PNG.
func SaveMask(path string, m *geometry.Mask) error {
	return SavePNG(path, m.ToGray())
}

// LoadMask reads a grayscale mask PNG back into a binary mask.
func LoadMask(path string) (*geometry.Mask, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	return geometry.MaskFromImage(img), nil
}

// CropMasked crops the image to the mask's bounding box and fills
// everything outside the mask with white, producing the query image for
// embedding. Returns ErrEmptyRegion when the mask has no foreground.
func CropMasked(img image.Image, mask *geometry.Mask) (*image.RGBA, error) {
	b := img.Bounds()
	mask = mask.Resize(b.Dx(), b.Dy())

	box, ok := mask.BoundingBox()
	if !ok {
		return nil, ErrEmptyRegion
	}

	src := FlattenToRGB(img)
	out := image.NewRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))

	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if mask.At(x, y) {
				out.Set(x-box.Min.X, y-box.Min.Y, src.At(x, y))
			} else {
				out.Set(x-box.Min.X, y-box.Min.Y, color.White)
			}
		}
	}
	return out, nil
}
