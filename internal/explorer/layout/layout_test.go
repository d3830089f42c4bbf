package layout

import (
	"math"
	"testing"

	"civscope.ai/internal/explorer/focus"
	"civscope.ai/internal/explorer/model"
	"civscope.ai/internal/geom"
)

var testViewport = Viewport{World: model.WorldDims{Width: 100, Height: 100}, Width: 1000, Height: 1000}

func parallelRoutes() []model.TradeRoute {
	a := geom.Point{X: 10, Y: 10}
	b := geom.Point{X: 60, Y: 40}
	return []model.TradeRoute{
		{From: "1", To: "2", FromPos: a, ToPos: b, Volume: 10},
		{From: "2", To: "1", FromPos: b, ToPos: a, Volume: 40},
		{From: "1", To: "3", FromPos: a, ToPos: geom.Point{X: 90, Y: 5}, Volume: 5},
		{From: "1", To: "2", FromPos: a, ToPos: b, Volume: 70},
	}
}

func TestLanes_Centered(t *testing.T) {
	l := NewLanes([]string{"a", "a", "a", "b", "c", "c"})
	want := []struct {
		key  string
		lane float64
	}{
		{"a", -1}, {"b", 0}, {"a", 0}, {"c", -0.5}, {"a", 1}, {"c", 0.5},
	}
	for _, w := range want {
		if got := l.Next(w.key); got != w.lane {
			t.Fatalf("lane(%s)=%v want=%v", w.key, got, w.lane)
		}
	}
}

func TestTrade_LaneDeterminism(t *testing.T) {
	routes := parallelRoutes()
	first := Trade(routes, testViewport, nil)
	second := Trade(routes, testViewport, nil)
	if len(first) != len(routes) || len(second) != len(routes) {
		t.Fatalf("len=%d/%d want=%d", len(first), len(second), len(routes))
	}
	for i := range first {
		if first[i].Lane != second[i].Lane || first[i].Bend != second[i].Bend {
			t.Fatalf("pass mismatch at %d: %v/%v", i, first[i].Lane, second[i].Lane)
		}
		for j := range first[i].Points {
			if first[i].Points[j] != second[i].Points[j] {
				t.Fatalf("points differ at %d/%d", i, j)
			}
		}
	}
	// Three routes share pair 1|2 regardless of direction.
	if first[0].Lane != -1 || first[1].Lane != 0 || first[3].Lane != 1 || first[2].Lane != 0 {
		t.Fatalf("lanes=%v,%v,%v,%v", first[0].Lane, first[1].Lane, first[2].Lane, first[3].Lane)
	}
}

func TestTrade_WidthAndPriority(t *testing.T) {
	routes := parallelRoutes()
	settlements := []model.Settlement{{ID: "1", CivID: "A"}, {ID: "2", CivID: "B"}, {ID: "3", CivID: "C"}, {ID: "4", CivID: "A"}}
	fc := focus.Build("3", settlements, routes, nil)
	out := Trade(routes, testViewport, fc)

	// 1->3 touches the selection.
	if out[2].Priority != 6 || out[2].Style != StyleDirect || out[2].Emphasis != EmphasisDirect {
		t.Fatalf("direct route: %+v", out[2])
	}
	if math.Abs(out[2].Width-2.4) > 1e-9 {
		t.Fatalf("direct width=%v want=2.4", out[2].Width)
	}
	// 1<->2: 1 is related (direct neighbor), 2 is not.
	if out[3].Emphasis != EmphasisFaded || out[3].Priority != 1 {
		t.Fatalf("faded route: %+v", out[3])
	}
	heavy := 3 + math.Min(4, 70.0/20)
	if math.Abs(out[3].Width-math.Max(0.9, heavy*0.9)) > 1e-9 {
		t.Fatalf("faded heavy width=%v", out[3].Width)
	}
	for _, p := range out {
		if p.HitWidth < 8 || p.HitWidth < p.Width+6-1e-9 {
			t.Fatalf("hit width %v for width %v", p.HitWidth, p.Width)
		}
		if len(p.Points) < 2 {
			t.Fatalf("polyline too short")
		}
		if p.Trade == nil || p.Diplomacy != nil {
			t.Fatalf("trade attrs missing")
		}
	}
}

func TestDiplomacy_Styles(t *testing.T) {
	lines := []model.DiplomacyLine{
		{CivA: "A", CivB: "B", Relation: -0.5, From: geom.Point{X: 10, Y: 10}, To: geom.Point{X: 50, Y: 50}},
		{CivA: "B", CivB: "C", Relation: 0.5, From: geom.Point{X: 50, Y: 50}, To: geom.Point{X: 80, Y: 20}},
		{CivA: "C", CivB: "A", Relation: 0.1, From: geom.Point{X: 80, Y: 20}, To: geom.Point{X: 10, Y: 10}},
	}
	settlements := []model.Settlement{{ID: "1", CivID: "A"}, {ID: "2", CivID: "B"}, {ID: "3", CivID: "C"}}
	fc := focus.Build("1", settlements, nil, lines)
	out := Diplomacy(lines, testViewport, fc)
	if out[0].Style != StyleHostile || out[0].Width != 3 || out[0].Priority != 5 {
		t.Fatalf("hostile touching selection: %+v", out[0])
	}
	if out[1].Style != StyleCooperative || out[1].Width != 2 || out[1].Priority != 2 {
		t.Fatalf("cooperative: style=%s width=%v priority=%d", out[1].Style, out[1].Width, out[1].Priority)
	}
	if out[2].Style != StyleNeutral || math.Abs(out[2].Width-2.1) > 1e-9 {
		t.Fatalf("neutral touching selection: style=%s width=%v", out[2].Style, out[2].Width)
	}
	if out[1].Points[0] == out[1].Points[len(out[1].Points)-1] {
		t.Fatalf("endpoints collapsed")
	}
	if got := len(out[0].Points); got != 19 {
		t.Fatalf("diplomacy samples=%d want=19", got)
	}
}

func TestMigration_SkipsInactiveAndBendsOpposite(t *testing.T) {
	byID := map[model.SettlementID]*model.Settlement{
		"1": {ID: "1", Center: geom.Point{X: 10, Y: 50}, Population: 10, Members: -1},
		"2": {ID: "2", Center: geom.Point{X: 90, Y: 50}, Population: 10, Members: -1},
		"3": {ID: "3", Center: geom.Point{X: 50, Y: 90}, Population: 0, Members: -1},
	}
	streams := []model.MigrationStream{
		{From: "1", To: "2", Intensity: 0.5},
		{From: "1", To: "3", Intensity: 0.5},
		{From: "1", To: "404", Intensity: 0.5},
	}
	out := Migration(streams, byID, testViewport, nil)
	if len(out) != 1 {
		t.Fatalf("len=%d want=1", len(out))
	}
	if out[0].Bend >= 0 {
		t.Fatalf("migration should bend negative: %v", out[0].Bend)
	}
	if math.Abs(out[0].Width-1.7) > 1e-9 || out[0].Priority != 4 {
		t.Fatalf("width=%v priority=%d", out[0].Width, out[0].Priority)
	}

	trade := Trade([]model.TradeRoute{{From: "1", To: "2", FromPos: byID["1"].Center, ToPos: byID["2"].Center}}, testViewport, nil)
	if trade[0].Bend <= 0 {
		t.Fatalf("trade should bend positive: %v", trade[0].Bend)
	}
}

func TestCoincidentEndpoints(t *testing.T) {
	p := geom.Point{X: 20, Y: 20}
	out := Trade([]model.TradeRoute{{From: "1", To: "2", FromPos: p, ToPos: p}}, testViewport, nil)
	if len(out) != 1 || len(out[0].Points) < 2 {
		t.Fatalf("coincident endpoints must still yield a polyline")
	}
	for _, q := range out[0].Points {
		if math.IsNaN(q.X) || math.IsNaN(q.Y) {
			t.Fatalf("NaN point %+v", q)
		}
	}
}

func TestDeriveKnowledge(t *testing.T) {
	byID := map[model.SettlementID]*model.Settlement{}
	var routes []model.TradeRoute
	for i := 0; i < 30; i++ {
		id := string(rune('a' + i))
		byID[id] = &model.Settlement{ID: id, Population: 5, Members: -1, KnowledgeLevel: float64(i) / 30}
	}
	byID["hub"] = &model.Settlement{ID: "hub", Population: 5, Members: -1, KnowledgeLevel: 0}
	for i := 0; i < 30; i++ {
		routes = append(routes, model.TradeRoute{From: "hub", To: string(rune('a' + i))})
	}
	routes = append(routes, model.TradeRoute{From: "hub", To: "missing"})

	links := DeriveKnowledge(routes, byID)
	if len(links) != MaxKnowledgeLinks {
		t.Fatalf("len=%d want=%d", len(links), MaxKnowledgeLinks)
	}
	for i := 1; i < len(links); i++ {
		if links[i].Score > links[i-1].Score {
			t.Fatalf("not sorted at %d", i)
		}
	}
	if links[0].To != string(rune('a'+29)) {
		t.Fatalf("top link=%s", links[0].To)
	}

	low := DeriveKnowledge([]model.TradeRoute{{From: "hub", To: "a"}, {From: "hub", To: "b"}}, byID)
	// gap(a)=0 and gap(b)=1/30*0.7≈0.023, both below the floor.
	if len(low) != 0 {
		t.Fatalf("low scores should be dropped: %+v", low)
	}

	out := Knowledge(links, testViewport, nil)
	if out[0].Knowledge == nil || out[0].Knowledge.Diffusion != links[0].Gap {
		t.Fatalf("diffusion attr mismatch")
	}
}
