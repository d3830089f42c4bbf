package history

import (
	"testing"

	"civscope.ai/internal/explorer/model"
)

func TestTrend_AggregatesSettlements(t *testing.T) {
	s := New(10)
	s.Insert(model.Snapshot{Tick: 1, Settlements: []model.Settlement{
		{ID: "1", Population: 30, Stability: 0.8, ConflictRate: 0.1, Wealth: 12, Members: -1},
		{ID: "2", Population: 10, Stability: 0.4, ConflictRate: 0.3, Wealth: 3, Members: -1},
		{ID: "3", Population: 0, Ruined: true, Members: -1},
	}})
	s.Insert(model.Snapshot{Tick: 2})

	got := s.Trend(s.Ticks(), 2, 0)
	if len(got) != 2 {
		t.Fatalf("points=%d want=2", len(got))
	}
	p := got[0]
	if p.Tick != 1 || p.Population != 40 || p.Wealth != 15 {
		t.Fatalf("sums=%+v", p)
	}
	if !near(p.Stability, 0.4) || !near(p.ConflictRate, 0.4/3) {
		t.Fatalf("means=%+v", p)
	}
	if got[1] != (TrendPoint{Tick: 2}) {
		t.Fatalf("empty snapshot=%+v", got[1])
	}
}

func TestTrend_WindowAndViewCutoff(t *testing.T) {
	s := New(0)
	for tick := uint64(1); tick <= 260; tick++ {
		s.Insert(snapAt(tick, float64(tick)))
	}

	got := s.Trend(s.Ticks(), 250, 0)
	if len(got) != TrendWindow {
		t.Fatalf("points=%d want=%d", len(got), TrendWindow)
	}
	if got[0].Tick != 51 || got[len(got)-1].Tick != 250 {
		t.Fatalf("range=%d..%d want=51..250", got[0].Tick, got[len(got)-1].Tick)
	}

	got = s.Trend(s.Ticks(), 5, 0)
	if len(got) != 5 || got[4].Tick != 5 || got[4].Population != 5 {
		t.Fatalf("early view=%+v", got)
	}
	if got := s.Trend(s.VisibleTicks(&TickRange{Start: 100, End: 120}), 110, 3); len(got) != 3 || got[0].Tick != 108 {
		t.Fatalf("era window=%+v", got)
	}
	if got := s.Trend(nil, 5, 0); len(got) != 0 {
		t.Fatalf("empty domain=%+v", got)
	}
}

func TestTrend_FollowsReplaceAndEviction(t *testing.T) {
	s := New(2)
	s.Insert(snapAt(1, 1))
	s.Insert(snapAt(2, 2))
	s.Insert(snapAt(2, 7))
	s.Insert(snapAt(3, 3))

	got := s.Trend(s.Ticks(), 3, 0)
	if len(got) != 2 || got[0].Tick != 2 || got[0].Population != 7 || got[1].Population != 3 {
		t.Fatalf("trend=%+v", got)
	}
	if _, ok := s.trend[1]; ok {
		t.Fatalf("evicted tick kept its aggregate")
	}
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
