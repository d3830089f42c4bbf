package layout

import (
	"fmt"

	"civscope.ai/internal/explorer/model"
	"civscope.ai/internal/geom"
)

// MinSamples is the floor on curve segments per polyline.
const MinSamples = 12

// Profile holds the per-kind bend parameters.
type Profile struct {
	Kind        model.LinkKind
	Factor      float64
	MinBend     float64
	MaxBend     float64
	Sign        float64
	LaneSpacing float64
	Samples     int
}

func ProfileFor(k model.LinkKind) Profile {
	switch k {
	case model.LinkTrade:
		return Profile{Kind: k, Factor: 0.045, MinBend: 8, MaxBend: 34, Sign: 1, LaneSpacing: 4, Samples: 16}
	case model.LinkDiplomacy:
		return Profile{Kind: k, Factor: 0.08, MinBend: 14, MaxBend: 52, Sign: 1, LaneSpacing: 5, Samples: 18}
	case model.LinkMigration:
		return Profile{Kind: k, Factor: 0.095, MinBend: 16, MaxBend: 58, Sign: -1, LaneSpacing: 5.4, Samples: 16}
	case model.LinkKnowledge:
		return Profile{Kind: k, Factor: 0.11, MinBend: 18, MaxBend: 64, Sign: 1, LaneSpacing: 5.8, Samples: 16}
	default:
		panic(fmt.Sprintf("layout: unknown link kind %q", k))
	}
}

// Jitter is the deterministic per-index bend offset.
func (p Profile) Jitter(index int) float64 {
	switch p.Kind {
	case model.LinkTrade:
		// Trade routes ride in their own channel above the other layers.
		return float64(index%3)*2.2 + 7.8
	case model.LinkDiplomacy:
		if index%2 == 0 {
			return 2.4
		}
		return -2.4
	case model.LinkMigration, model.LinkKnowledge:
		return 0
	default:
		panic(fmt.Sprintf("layout: unknown link kind %q", p.Kind))
	}
}

// Bend is the signed control offset for an edge of the given endpoint
// distance, lane and input index.
func (p Profile) Bend(distance, lane float64, index int) float64 {
	base := geom.Clamp(distance*p.Factor, p.MinBend, p.MaxBend)
	return p.Sign*(base+lane*p.LaneSpacing) + p.Jitter(index)
}

func (p Profile) SampleCount() int {
	if p.Samples < MinSamples {
		return MinSamples
	}
	return p.Samples
}

// Curve lays one edge between canvas points a and b.
func (p Profile) Curve(a, b geom.Point, lane float64, index int) (points []geom.Point, bend float64) {
	d := a.Dist(b)
	if d < 1 {
		d = 1
	}
	bend = p.Bend(d, lane, index)
	ctrl := geom.BendControl(a, b, bend)
	return geom.SampleQuadratic(a, ctrl, b, p.SampleCount()), bend
}

// Lanes assigns centered lane offsets to edges that share an endpoint pair.
type Lanes struct {
	total map[string]int
	seen  map[string]int
}

func NewLanes(keys []string) *Lanes {
	l := &Lanes{total: make(map[string]int, len(keys)), seen: make(map[string]int, len(keys))}
	for _, k := range keys {
		l.total[k]++
	}
	return l
}

// Next returns seen-(total-1)/2 for key and advances its counter.
func (l *Lanes) Next(key string) float64 {
	total := l.total[key]
	if total == 0 {
		total = 1
	}
	seen := l.seen[key]
	l.seen[key] = seen + 1
	return float64(seen) - float64(total-1)/2
}
