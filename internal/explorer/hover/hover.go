// Package hover resolves which laid-out edge sits under the pointer.
package hover

import (
	"math"

	"civscope.ai/internal/explorer/layout"
	"civscope.ai/internal/geom"
)

type Params struct {
	// Scale is the display scale factor (device pixel ratio).
	Scale          float64
	BaseThreshold  float64
	Margin         float64
	HitScale       float64
	PriorityWeight float64
}

func DefaultParams() Params {
	return Params{
		Scale:          1,
		BaseThreshold:  10,
		Margin:         5,
		HitScale:       1.75,
		PriorityWeight: 0.8,
	}
}

type Result struct {
	Polyline   *layout.Polyline `json:"polyline"`
	Index      int              `json:"index"`
	Distance   float64          `json:"distance"`
	Score      float64          `json:"score"`
	Descriptor Descriptor       `json:"descriptor"`
}

// Resolve returns the best candidate under pointer, or nil.
//
// A candidate is accepted within max(base, hitWidth*hitScale+margin), all
// scaled by the display factor. The lowest distance-priority*weight wins and
// ties keep the earlier candidate. A pointer lying exactly on a curve beats
// every candidate it does not lie on.
func Resolve(pointer *geom.Point, candidates []layout.Polyline, p Params) *Result {
	if pointer == nil || len(candidates) == 0 {
		return nil
	}
	scale := p.Scale
	if scale <= 0 {
		scale = 1
	}
	base := p.BaseThreshold * scale

	var best *Result
	for i := range candidates {
		c := &candidates[i]
		hit := math.Max(1, c.HitWidth)
		limit := math.Max(base, hit*p.HitScale+p.Margin*scale)
		d := geom.DistToPolyline(*pointer, c.Points)
		if d > limit {
			continue
		}
		score := d - float64(c.Priority)*p.PriorityWeight
		if best == nil || better(d, score, best) {
			best = &Result{Polyline: c, Index: i, Distance: d, Score: score}
		}
	}
	if best != nil {
		best.Descriptor = Describe(*best.Polyline)
	}
	return best
}

func better(d, score float64, cur *Result) bool {
	onCurve, curOnCurve := d == 0, cur.Distance == 0
	if onCurve != curOnCurve {
		return onCurve
	}
	return score < cur.Score
}
