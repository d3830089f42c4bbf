package geom

import (
	"math"
	"testing"
)

func TestNormal_ZeroLengthUsesDefault(t *testing.T) {
	p := Point{X: 3, Y: 4}
	if n := Normal(p, p); n != DefaultNormal {
		t.Fatalf("normal=%+v want=%+v", n, DefaultNormal)
	}
	c := BendControl(p, p, 10)
	if c.X != 3 || c.Y != 14 {
		t.Fatalf("control=%+v", c)
	}
}

func TestSampleQuadratic_Endpoints(t *testing.T) {
	from := Point{X: 0, Y: 0}
	to := Point{X: 100, Y: 0}
	pts := SampleQuadratic(from, BendControl(from, to, 20), to, 16)
	if len(pts) != 17 {
		t.Fatalf("len=%d want=17", len(pts))
	}
	if pts[0] != from || pts[16] != to {
		t.Fatalf("endpoints mismatch: %+v %+v", pts[0], pts[16])
	}
	// Apex of a symmetric quadratic is half the control offset.
	if math.Abs(pts[8].Y-10) > 1e-9 {
		t.Fatalf("apex y=%v want=10", pts[8].Y)
	}
}

func TestDistToPolyline(t *testing.T) {
	pts := []Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}
	cases := []struct {
		p    Point
		want float64
	}{
		{Point{X: 5, Y: 0}, 0},
		{Point{X: 5, Y: 3}, 3},
		{Point{X: -4, Y: 3}, 5},
		{Point{X: 13, Y: 5}, 3},
	}
	for _, c := range cases {
		if got := DistToPolyline(c.p, pts); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("dist(%+v)=%v want=%v", c.p, got, c.want)
		}
	}
	if !math.IsInf(DistToPolyline(Point{}, pts[:1]), 1) {
		t.Fatalf("expected +Inf for single point")
	}
}
