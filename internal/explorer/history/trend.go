package history

import (
	"sort"

	"civscope.ai/internal/explorer/model"
)

// TrendWindow caps how many ticks a trend series covers.
const TrendWindow = 200

// TrendPoint aggregates one snapshot for the history charts. Stability and
// conflict are means over every reported settlement, ruins included.
type TrendPoint struct {
	Tick         uint64  `json:"tick"`
	Population   float64 `json:"population"`
	Stability    float64 `json:"stability"`
	ConflictRate float64 `json:"conflict_rate"`
	Wealth       float64 `json:"wealth"`
}

func summarize(snap *model.Snapshot) TrendPoint {
	p := TrendPoint{Tick: snap.Tick}
	for i := range snap.Settlements {
		s := &snap.Settlements[i]
		p.Population += s.Population
		p.Stability += s.Stability
		p.ConflictRate += s.ConflictRate
		p.Wealth += s.Wealth
	}
	if n := float64(len(snap.Settlements)); n > 0 {
		p.Stability /= n
		p.ConflictRate /= n
	}
	return p
}

// Trend returns the aggregates of the last window ticks of domain that are
// at or before upTo, oldest first. A non-positive window uses TrendWindow.
func (s *Store) Trend(domain []uint64, upTo uint64, window int) []TrendPoint {
	if window <= 0 {
		window = TrendWindow
	}
	hi := sort.Search(len(domain), func(i int) bool { return domain[i] > upTo })
	lo := max(0, hi-window)
	out := make([]TrendPoint, 0, hi-lo)
	for _, t := range domain[lo:hi] {
		if p, ok := s.trend[t]; ok {
			out = append(out, p)
		}
	}
	return out
}
