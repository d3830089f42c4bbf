package geom

import "math"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(q Point) Point     { return Point{X: p.X + q.X, Y: p.Y + q.Y} }
func (p Point) Sub(q Point) Point     { return Point{X: p.X - q.X, Y: p.Y - q.Y} }
func (p Point) Scale(k float64) Point { return Point{X: p.X * k, Y: p.Y * k} }
func (p Point) Dist(q Point) float64  { return math.Hypot(q.X-p.X, q.Y-p.Y) }
func Midpoint(a, b Point) Point       { return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2} }
func Clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
func Clamp01(v float64) float64       { return Clamp(v, 0, 1) }

// DefaultNormal is used when a segment has no direction.
var DefaultNormal = Point{X: 0, Y: 1}

// Normal returns the unit left normal of the segment a->b.
func Normal(a, b Point) Point {
	dx := b.X - a.X
	dy := b.Y - a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return DefaultNormal
	}
	return Point{X: -dy / l, Y: dx / l}
}

// BendControl returns the quadratic control point at the midpoint of a->b
// pushed bend units along the segment normal.
func BendControl(a, b Point, bend float64) Point {
	return Midpoint(a, b).Add(Normal(a, b).Scale(bend))
}

// SampleQuadratic evaluates the quadratic Bezier from->ctrl->to at segments+1
// evenly spaced parameters, endpoints included.
func SampleQuadratic(from, ctrl, to Point, segments int) []Point {
	if segments < 1 {
		segments = 1
	}
	out := make([]Point, 0, segments+1)
	for i := 0; i <= segments; i++ {
		t := float64(i) / float64(segments)
		inv := 1 - t
		out = append(out, Point{
			X: inv*inv*from.X + 2*inv*t*ctrl.X + t*t*to.X,
			Y: inv*inv*from.Y + 2*inv*t*ctrl.Y + t*t*to.Y,
		})
	}
	return out
}

// DistToSegment is the distance from p to the closed segment a-b.
func DistToSegment(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	if dx == 0 && dy == 0 {
		return p.Dist(a)
	}
	t := Clamp01(((p.X-a.X)*dx + (p.Y-a.Y)*dy) / (dx*dx + dy*dy))
	return p.Dist(Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

// DistToPolyline returns +Inf for fewer than two points.
func DistToPolyline(p Point, pts []Point) float64 {
	best := math.Inf(1)
	for i := 0; i+1 < len(pts); i++ {
		if d := DistToSegment(p, pts[i], pts[i+1]); d < best {
			best = d
		}
	}
	return best
}
