// Package geometry turns binary segmentation masks into simplified polygon
// outlines: binarize, trace outer boundaries, filter noise by area, then
// simplify each boundary with a tolerance derived from its own perimeter.
package geometry

import (
	"errors"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// ErrMalformedMask reports mask input that cannot be reduced to a 2D grid.
var ErrMalformedMask = errors.New("malformed mask: expected 2D grid")

// Mask is a dense binary grid. Pixels are 0 (background) or 255 (foreground),
// regardless of the dtype the segmentation model produced.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8 // row-major, len == Width*Height
}

// MaskFromFloats builds a mask from a row-major float grid. Singleton
// leading/trailing dimensions from model output (e.g. [1, H, W]) are
// squeezed away; anything that does not reduce to exactly two dimensions
// is rejected. Values greater than zero become foreground.
func MaskFromFloats(shape []int, data []float64) (*Mask, error) {
	dims := squeeze(shape)
	if len(dims) != 2 {
		return nil, ErrMalformedMask
	}

	h, w := dims[0], dims[1]
	if h <= 0 || w <= 0 || len(data) != h*w {
		return nil, ErrMalformedMask
	}

	m := &Mask{Width: w, Height: h, Pix: make([]uint8, w*h)}
	for i, v := range data {
		if v > 0 {
			m.Pix[i] = 255
		}
	}
	return m, nil
}

// MaskFromBytes builds a mask from a row-major byte grid. Non-zero values
// become foreground.
func MaskFromBytes(width, height int, data []uint8) (*Mask, error) {
	if width <= 0 || height <= 0 || len(data) != width*height {
		return nil, ErrMalformedMask
	}

	m := &Mask{Width: width, Height: height, Pix: make([]uint8, width*height)}
	for i, v := range data {
		if v > 0 {
			m.Pix[i] = 255
		}
	}
	return m, nil
}

// MaskFromBools builds a mask from a row-major boolean grid.
func MaskFromBools(width, height int, data []bool) (*Mask, error) {
	if width <= 0 || height <= 0 || len(data) != width*height {
		return nil, ErrMalformedMask
	}

	m := &Mask{Width: width, Height: height, Pix: make([]uint8, width*height)}
	for i, v := range data {
		if v {
			m.Pix[i] = 255
		}
	}
	return m, nil
}

// MaskFromImage binarizes a decoded mask image. Any pixel with non-zero
// luminance becomes foreground.
func MaskFromImage(img image.Image) *Mask {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	m := &Mask{Width: w, Height: h, Pix: make([]uint8, w*h)}

	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
			for x, v := range row {
				if v > 0 {
					m.Pix[y*w+x] = 255
				}
			}
		}
		return m
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			if c.Y > 0 {
				m.Pix[y*w+x] = 255
			}
		}
	}
	return m
}

func squeeze(shape []int) []int {
	dims := append([]int(nil), shape...)
	for len(dims) > 2 {
		switch {
		case dims[0] == 1:
			dims = dims[1:]
		case dims[len(dims)-1] == 1:
			dims = dims[:len(dims)-1]
		default:
			return dims
		}
	}
	return dims
}

// At reports whether (x, y) is foreground. Out-of-bounds is background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x] > 0
}

// ForegroundCount returns the number of foreground pixels.
func (m *Mask) ForegroundCount() int {
	n := 0
	for _, v := range m.Pix {
		if v > 0 {
			n++
		}
	}
	return n
}

// BoundingBox returns the tight bounds of the foreground region. The second
// return value is false when the mask is entirely background.
func (m *Mask) BoundingBox() (image.Rectangle, bool) {
	minX, minY := m.Width, m.Height
	maxX, maxY := -1, -1

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Pix[y*m.Width+x] > 0 {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// Resize resamples the mask to width×height with nearest-neighbour
// interpolation. Segmentation models do not always honor the input size,
// so callers re-sample before polygon extraction. Returns the receiver
// unchanged when the size already matches.
func (m *Mask) Resize(width, height int) *Mask {
	if width == m.Width && height == m.Height {
		return m
	}

	src := m.ToGray()
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return MaskFromImage(dst)
}

// ToGray renders the mask as an 8-bit grayscale image (0/255).
func (m *Mask) ToGray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+m.Width], m.Pix[y*m.Width:(y+1)*m.Width])
	}
	return img
}
