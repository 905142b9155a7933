package geometry

import "math"

// simplifyEpsilonFactor scales each polygon's perimeter into its
// simplification tolerance. Kept very small so outlines track the mask
// closely while collinear runs collapse.
const simplifyEpsilonFactor = 0.001

// Simplify applies closed-curve Douglas-Peucker simplification to each
// polygon at a tolerance of 0.001 × its own closed perimeter. A polygon
// whose simplification would fall below 3 points is kept unsimplified;
// simplification never destroys a valid shape.
func Simplify(polys []Polygon) []Polygon {
	out := make([]Polygon, 0, len(polys))
	for _, p := range polys {
		if len(p) < 3 {
			continue
		}
		simplified := SimplifyPolygon(p, p.Perimeter()*simplifyEpsilonFactor)
		if len(simplified) < 3 {
			simplified = p
		}
		out = append(out, simplified)
	}
	return out
}

// SimplifyPolygon runs Douglas-Peucker on a closed polygon with the given
// tolerance. The curve is split at the vertex farthest from the first
// point and each open chain is simplified independently; the split choice
// is deterministic, so identical input yields identical output.
func SimplifyPolygon(p Polygon, tolerance float64) Polygon {
	if len(p) < 3 {
		return p
	}

	split := 0
	maxDist := -1.0
	for i := 1; i < len(p); i++ {
		d := math.Hypot(p[i][0]-p[0][0], p[i][1]-p[0][1])
		if d > maxDist {
			maxDist = d
			split = i
		}
	}
	if split == 0 {
		return p
	}

	first := douglasPeucker(p[:split+1], tolerance)
	second := douglasPeucker(append(append(Polygon{}, p[split:]...), p[0]), tolerance)

	// Chain endpoints overlap at the split vertex and at the closing point.
	out := append(Polygon{}, first...)
	out = append(out, second[1:len(second)-1]...)
	return out
}

func douglasPeucker(points Polygon, tolerance float64) Polygon {
	if len(points) < 3 {
		return append(Polygon{}, points...)
	}

	index := 0
	maxDist := 0.0
	a, b := points[0], points[len(points)-1]
	for i := 1; i < len(points)-1; i++ {
		d := perpendicularDistance(points[i], a, b)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}

	if maxDist <= tolerance {
		return Polygon{a, b}
	}

	left := douglasPeucker(points[:index+1], tolerance)
	right := douglasPeucker(points[index:], tolerance)
	return append(left[:len(left)-1], right...)
}

func perpendicularDistance(p, a, b [2]float64) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return math.Hypot(p[0]-a[0], p[1]-a[1])
	}
	return math.Abs(dy*p[0]-dx*p[1]+b[0]*a[1]-b[1]*a[0]) / length
}

// ExtractPolygons runs the full pipeline: trace outer boundaries, filter
// by area, then simplify.
func ExtractPolygons(m *Mask) []Polygon {
	polys := ExtractContours(m)
	polys = FilterByArea(polys, m.Width, m.Height)
	return Simplify(polys)
}
