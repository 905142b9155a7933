package geometry

import (
	"errors"
	"image"
	"math"
	"testing"
)

// maskFromRows builds a mask from a string picture, '#' marking foreground.
func maskFromRows(rows []string) *Mask {
	h := len(rows)
	w := len(rows[0])
	m := &Mask{Width: w, Height: h, Pix: make([]uint8, w*h)}
	for y, row := range rows {
		for x := 0; x < w; x++ {
			if row[x] == '#' {
				m.Pix[y*w+x] = 255
			}
		}
	}
	return m
}

func TestMaskFromFloats(t *testing.T) {
	tests := []struct {
		name    string
		shape   []int
		data    []float64
		wantErr bool
		wantW   int
		wantH   int
		wantFG  int
	}{
		{
			name:   "plain 2D grid",
			shape:  []int{2, 3},
			data:   []float64{0, 1, 0, 0.5, 0, -1},
			wantW:  3, wantH: 2, wantFG: 2,
		},
		{
			name:   "singleton batch dim squeezed",
			shape:  []int{1, 2, 2},
			data:   []float64{1, 0, 0, 1},
			wantW:  2, wantH: 2, wantFG: 2,
		},
		{
			name:   "singleton dims on both ends",
			shape:  []int{1, 2, 3, 1},
			data:   []float64{1, 1, 1, 0, 0, 0},
			wantW:  3, wantH: 2, wantFG: 3,
		},
		{
			name:    "three real dims rejected",
			shape:   []int{2, 2, 2},
			data:    make([]float64, 8),
			wantErr: true,
		},
		{
			name:    "data length mismatch",
			shape:   []int{2, 2},
			data:    []float64{1, 2, 3},
			wantErr: true,
		},
		{
			name:    "one dimensional",
			shape:   []int{4},
			data:    []float64{1, 1, 1, 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := MaskFromFloats(tt.shape, tt.data)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedMask) {
					t.Fatalf("err = %v, want ErrMalformedMask", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("MaskFromFloats failed: %v", err)
			}
			if m.Width != tt.wantW || m.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", m.Width, m.Height, tt.wantW, tt.wantH)
			}
			if got := m.ForegroundCount(); got != tt.wantFG {
				t.Errorf("ForegroundCount = %d, want %d", got, tt.wantFG)
			}
		})
	}
}

func TestMaskFromBools(t *testing.T) {
	m, err := MaskFromBools(2, 2, []bool{true, false, false, true})
	if err != nil {
		t.Fatalf("MaskFromBools failed: %v", err)
	}
	if !m.At(0, 0) || !m.At(1, 1) || m.At(1, 0) {
		t.Error("Boolean grid mapped to the wrong pixels")
	}

	if _, err := MaskFromBools(2, 2, []bool{true}); !errors.Is(err, ErrMalformedMask) {
		t.Errorf("err = %v, want ErrMalformedMask", err)
	}
}

func TestMaskBoundingBox(t *testing.T) {
	m := maskFromRows([]string{
		".....",
		".##..",
		".##..",
		".....",
	})

	box, ok := m.BoundingBox()
	if !ok {
		t.Fatal("Expected a bounding box")
	}
	if want := image.Rect(1, 1, 3, 3); box != want {
		t.Errorf("BoundingBox = %v, want %v", box, want)
	}

	empty := &Mask{Width: 3, Height: 3, Pix: make([]uint8, 9)}
	if _, ok := empty.BoundingBox(); ok {
		t.Error("Empty mask should have no bounding box")
	}
}

func TestMaskResize(t *testing.T) {
	m := maskFromRows([]string{
		"#.",
		"..",
	})

	big := m.Resize(4, 4)
	if big.Width != 4 || big.Height != 4 {
		t.Fatalf("size = %dx%d, want 4x4", big.Width, big.Height)
	}
	if !big.At(0, 0) || !big.At(1, 1) {
		t.Error("Foreground quadrant lost in upscale")
	}
	if big.At(3, 3) {
		t.Error("Background quadrant gained foreground in upscale")
	}

	if same := m.Resize(2, 2); same != m {
		t.Error("Resize to the same size should return the receiver")
	}
}

func TestExtractContoursSquare(t *testing.T) {
	m := maskFromRows([]string{
		".....",
		".###.",
		".###.",
		".###.",
		".....",
	})

	polys := ExtractContours(m)
	if len(polys) != 1 {
		t.Fatalf("Got %d contours, want 1", len(polys))
	}

	want := Polygon{
		{1, 1}, {2, 1}, {3, 1}, {3, 2}, {3, 3}, {2, 3}, {1, 3}, {1, 2},
	}
	got := polys[0]
	if len(got) != len(want) {
		t.Fatalf("Contour has %d points, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExtractContoursMultipleComponents(t *testing.T) {
	m := maskFromRows([]string{
		"##....##",
		"##....##",
		"........",
		"...##...",
		"...##...",
	})

	polys := ExtractContours(m)
	if len(polys) != 3 {
		t.Fatalf("Got %d contours, want 3", len(polys))
	}

	// Scan order: top-left block, top-right block, then the middle one.
	starts := [][2]float64{{0, 0}, {6, 0}, {3, 3}}
	for i, p := range polys {
		if p[0] != starts[i] {
			t.Errorf("contour %d starts at %v, want %v", i, p[0], starts[i])
		}
	}
}

func TestExtractContoursDropsTinyComponents(t *testing.T) {
	m := maskFromRows([]string{
		"#....",
		"...##",
		".....",
	})

	// A single pixel and a 1x2 bar both trace to fewer than 3 points.
	if polys := ExtractContours(m); len(polys) != 0 {
		t.Errorf("Got %d contours, want 0: %v", len(polys), polys)
	}
}

func TestExtractContoursEmptyMask(t *testing.T) {
	m := &Mask{Width: 8, Height: 8, Pix: make([]uint8, 64)}
	if polys := ExtractContours(m); len(polys) != 0 {
		t.Errorf("Got %d contours from an empty mask", len(polys))
	}
}

func TestExtractContoursDeterministic(t *testing.T) {
	m := maskFromRows([]string{
		"..####..",
		".######.",
		".######.",
		"..####..",
	})

	first := ExtractContours(m)
	for run := 0; run < 5; run++ {
		again := ExtractContours(m)
		if len(again) != len(first) {
			t.Fatalf("run %d: %d contours, want %d", run, len(again), len(first))
		}
		for i := range first {
			if len(again[i]) != len(first[i]) {
				t.Fatalf("run %d: contour %d has %d points, want %d",
					run, i, len(again[i]), len(first[i]))
			}
			for j := range first[i] {
				if again[i][j] != first[i][j] {
					t.Fatalf("run %d: contour %d point %d differs", run, i, j)
				}
			}
		}
	}
}

func TestPolygonArea(t *testing.T) {
	square := Polygon{{0, 0}, {4, 0}, {4, 4}, {0, 4}}
	if got := square.Area(); got != 16 {
		t.Errorf("Area = %v, want 16", got)
	}

	degenerate := Polygon{{0, 0}, {1, 1}}
	if got := degenerate.Area(); got != 0 {
		t.Errorf("Degenerate area = %v, want 0", got)
	}
}

func TestPolygonPerimeter(t *testing.T) {
	square := Polygon{{0, 0}, {3, 0}, {3, 3}, {0, 3}}
	if got := square.Perimeter(); got != 12 {
		t.Errorf("Perimeter = %v, want 12", got)
	}
}

func TestFilterByAreaDropsFrameArtifact(t *testing.T) {
	// 20x20 mask: a near-full-frame ring, one real object, one speck.
	frame := Polygon{{0, 0}, {19, 0}, {19, 19}, {0, 19}} // area 361 >= 0.9*400
	object := Polygon{{5, 5}, {10, 5}, {10, 10}, {5, 10}}
	speck := Polygon{{15, 15}, {16, 15}, {16, 16}, {15, 16}}

	got := FilterByArea([]Polygon{frame, object, speck}, 20, 20)
	if len(got) != 1 {
		t.Fatalf("Got %d polygons, want 1", len(got))
	}
	if got[0][0] != object[0] {
		t.Errorf("Survivor starts at %v, want the object polygon", got[0][0])
	}
}

func TestFilterByAreaSkipsEmptyingPass(t *testing.T) {
	// Both polygons are full-frame artifacts; dropping them all would
	// leave nothing, so the frame pass is skipped.
	a := Polygon{{0, 0}, {19, 0}, {19, 19}, {0, 19}}
	b := Polygon{{0, 0}, {19, 0}, {19, 19}, {0, 19}}

	got := FilterByArea([]Polygon{a, b}, 20, 20)
	if len(got) != 2 {
		t.Errorf("Got %d polygons, want both survivors", len(got))
	}
}

func TestFilterByAreaSingle(t *testing.T) {
	// A lone polygon is never filtered, even a full-frame one.
	frame := Polygon{{0, 0}, {19, 0}, {19, 19}, {0, 19}}
	got := FilterByArea([]Polygon{frame}, 20, 20)
	if len(got) != 1 {
		t.Errorf("Got %d polygons, want 1", len(got))
	}
}

func TestSimplifyCollapsesCollinearRuns(t *testing.T) {
	// Dense square ring as traced from a 3x3 block.
	ring := Polygon{
		{1, 1}, {2, 1}, {3, 1}, {3, 2}, {3, 3}, {2, 3}, {1, 3}, {1, 2},
	}

	out := Simplify([]Polygon{ring})
	if len(out) != 1 {
		t.Fatalf("Got %d polygons, want 1", len(out))
	}

	want := Polygon{{1, 1}, {3, 1}, {3, 3}, {1, 3}}
	got := out[0]
	if len(got) != len(want) {
		t.Fatalf("Simplified to %d points, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSimplifyIdempotent(t *testing.T) {
	ring := Polygon{
		{1, 1}, {2, 1}, {3, 1}, {3, 2}, {3, 3}, {2, 3}, {1, 3}, {1, 2},
	}

	once := Simplify([]Polygon{ring})
	twice := Simplify(once)
	if len(once) != 1 || len(twice) != 1 {
		t.Fatal("Expected one polygon through both passes")
	}
	if len(once[0]) != len(twice[0]) {
		t.Fatalf("Second pass changed point count: %d vs %d", len(once[0]), len(twice[0]))
	}
	for i := range once[0] {
		if once[0][i] != twice[0][i] {
			t.Errorf("point %d changed on second pass", i)
		}
	}
}

func TestSimplifyNeverDropsBelowTriangle(t *testing.T) {
	// A thin sliver whose simplification would collapse is kept as-is.
	sliver := Polygon{{0, 0}, {10, 0.0001}, {20, 0}}
	out := Simplify([]Polygon{sliver})
	if len(out) != 1 {
		t.Fatalf("Got %d polygons, want 1", len(out))
	}
	if len(out[0]) < 3 {
		t.Errorf("Simplification destroyed the polygon: %v", out[0])
	}
}

func TestSimplifyPolygonLargeTolerance(t *testing.T) {
	// With a huge tolerance everything between anchors collapses; the
	// caller is responsible for rejecting sub-triangle output.
	ring := Polygon{
		{1, 1}, {2, 1}, {3, 1}, {3, 2}, {3, 3}, {2, 3}, {1, 3}, {1, 2},
	}
	out := SimplifyPolygon(ring, 100)
	if len(out) >= len(ring) {
		t.Errorf("Tolerance 100 should shrink the ring, got %d points", len(out))
	}
}

func TestExtractPolygonsPipeline(t *testing.T) {
	m := maskFromRows([]string{
		"........",
		".#####..",
		".#####..",
		".#####..",
		".#####..",
		"........",
	})

	polys := ExtractPolygons(m)
	if len(polys) != 1 {
		t.Fatalf("Got %d polygons, want 1", len(polys))
	}

	p := polys[0]
	if len(p) < 3 {
		t.Fatalf("Polygon has %d points, want at least 3", len(p))
	}

	// All points stay inside the mask's coordinate space.
	for _, pt := range p {
		if pt[0] < 0 || pt[0] >= float64(m.Width) || pt[1] < 0 || pt[1] >= float64(m.Height) {
			t.Errorf("Point %v outside the mask bounds", pt)
		}
	}

	// The simplified outline keeps the block's extent: the boundary ring
	// of a 5x4 pixel block spans 4x3 in point coordinates.
	if area := p.Area(); math.Abs(area-12) > 1e-9 {
		t.Errorf("Area = %v, want 12", area)
	}
}

func TestExtractPolygonsEmptyMask(t *testing.T) {
	m := &Mask{Width: 10, Height: 10, Pix: make([]uint8, 100)}
	if polys := ExtractPolygons(m); len(polys) != 0 {
		t.Errorf("Got %d polygons from an empty mask", len(polys))
	}
}
