package geometry

import "math"

// Polygon is one closed boundary as an ordered sequence of (x, y) pairs in
// mask coordinates. No self-intersection guarantee is made.
type Polygon [][2]float64

// Moore neighbourhood in clockwise order with y growing downward:
// E, SE, S, SW, W, NW, N, NE.
var mooreDirs = [8][2]int{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

// ExtractContours traces the outer boundary of every 8-connected foreground
// component, keeping every boundary pixel (no chain approximation). Holes
// are not reported. Boundaries with fewer than 3 points are discarded.
// Components are visited in row-major scan order, so identical masks always
// yield identical output.
func ExtractContours(m *Mask) []Polygon {
	labels := make([]int32, m.Width*m.Height)
	var polys []Polygon

	next := int32(1)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			i := y*m.Width + x
			if m.Pix[i] == 0 || labels[i] != 0 {
				continue
			}
			labelComponent(m, labels, x, y, next)
			next++

			if poly := traceBoundary(m, x, y); len(poly) >= 3 {
				polys = append(polys, poly)
			}
		}
	}

	return polys
}

// labelComponent flood-fills the 8-connected component containing (x, y).
func labelComponent(m *Mask, labels []int32, x, y int, label int32) {
	stack := [][2]int{{x, y}}
	labels[y*m.Width+x] = label

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, d := range mooreDirs {
			nx, ny := p[0]+d[0], p[1]+d[1]
			if !m.At(nx, ny) {
				continue
			}
			ni := ny*m.Width + nx
			if labels[ni] == 0 {
				labels[ni] = label
				stack = append(stack, [2]int{nx, ny})
			}
		}
	}
}

// traceBoundary walks the outer border clockwise from the component's first
// pixel in scan order (its top-left boundary pixel) using Moore neighbour
// tracing with Jacob's stopping criterion.
func traceBoundary(m *Mask, sx, sy int) Polygon {
	poly := Polygon{{float64(sx), float64(sy)}}

	cx, cy := sx, sy
	// The scan arrives from the west, which is guaranteed background.
	back := 4 // index of W in mooreDirs
	firstMove := -1

	maxSteps := 4 * m.Width * m.Height
	for step := 0; step < maxSteps; step++ {
		found := -1
		for k := 1; k <= 8; k++ {
			j := (back + k) % 8
			nx, ny := cx+mooreDirs[j][0], cy+mooreDirs[j][1]
			if m.At(nx, ny) {
				found = j
				break
			}
		}
		if found < 0 {
			// Isolated pixel: the single-point contour is dropped later.
			return poly
		}

		// The walk is closed once it stands on the start pixel about to
		// repeat its first move.
		if cx == sx && cy == sy && found == firstMove {
			return poly
		}
		if firstMove < 0 {
			firstMove = found
		}

		cx += mooreDirs[found][0]
		cy += mooreDirs[found][1]
		// Re-enter the neighbourhood scan from the direction pointing back
		// at the previous pixel.
		back = (found + 4 + 1) % 8

		if cx != sx || cy != sy {
			poly = append(poly, [2]float64{float64(cx), float64(cy)})
		}
	}

	return poly
}

// Area returns the polygon's enclosed area via the shoelace formula.
func (p Polygon) Area() float64 {
	if len(p) < 3 {
		return 0
	}
	sum := 0.0
	for i := range p {
		j := (i + 1) % len(p)
		sum += p[i][0]*p[j][1] - p[j][0]*p[i][1]
	}
	return math.Abs(sum) / 2
}

// Perimeter returns the closed polyline length.
func (p Polygon) Perimeter() float64 {
	if len(p) < 2 {
		return 0
	}
	total := 0.0
	for i := range p {
		j := (i + 1) % len(p)
		total += math.Hypot(p[j][0]-p[i][0], p[j][1]-p[i][1])
	}
	return total
}

const (
	// frameAreaRatio drops boundaries that span nearly the whole mask.
	frameAreaRatio = 0.9
	// meanAreaRatio drops fragments far smaller than the surviving mean.
	meanAreaRatio = 0.2
)

// FilterByArea removes spurious boundaries when more than one polygon was
// extracted. First any polygon covering more than 90% of the mask area is
// dropped as a full-frame artifact, then any polygon smaller than 20% of
// the mean area of the survivors is dropped as noise. A pass that would
// remove every polygon is skipped; the two passes must run in this order.
func FilterByArea(polys []Polygon, maskWidth, maskHeight int) []Polygon {
	if len(polys) <= 1 {
		return polys
	}

	maskArea := float64(maskWidth) * float64(maskHeight)

	var kept []Polygon
	for _, p := range polys {
		if p.Area() < maskArea*frameAreaRatio {
			kept = append(kept, p)
		}
	}
	if len(kept) > 0 {
		polys = kept
	}

	if len(polys) > 1 {
		mean := 0.0
		for _, p := range polys {
			mean += p.Area()
		}
		mean /= float64(len(polys))

		kept = nil
		for _, p := range polys {
			if p.Area() > mean*meanAreaRatio {
				kept = append(kept, p)
			}
		}
		if len(kept) > 0 {
			polys = kept
		}
	}

	return polys
}
