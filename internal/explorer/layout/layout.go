// Package layout turns relational edges into sampled curves. Edges sharing
// an endpoint pair are fanned into lanes so parallel links stay readable.
package layout

import (
	"math"

	"civscope.ai/internal/explorer/focus"
	"civscope.ai/internal/explorer/model"
	"civscope.ai/internal/geom"
)

type Emphasis string

const (
	EmphasisNone    Emphasis = "none"
	EmphasisDirect  Emphasis = "direct"
	EmphasisRelated Emphasis = "related"
	EmphasisFaded   Emphasis = "faded"
)

const (
	StyleDirect      = "direct"
	StyleStandard    = "standard"
	StyleFragile     = "fragile"
	StyleHostile     = "hostile"
	StyleCooperative = "cooperative"
	StyleNeutral     = "neutral"
	StyleMigration   = "migration"
	StyleKnowledge   = "knowledge"
)

type TradeAttrs struct {
	Volume      float64 `json:"volume"`
	Reliability float64 `json:"reliability"`
	Momentum    float64 `json:"momentum"`
	Distance    float64 `json:"distance"`
}

type DiplomacyAttrs struct {
	Relation float64 `json:"relation"`
	Color    string  `json:"color,omitempty"`
}

type MigrationAttrs struct {
	Intensity float64 `json:"intensity"`
}

type KnowledgeAttrs struct {
	Diffusion float64 `json:"diffusion"`
	Score     float64 `json:"score"`
}

// Polyline is one laid-out edge. Exactly one attrs pointer is set, matching Kind.
type Polyline struct {
	Kind     model.LinkKind `json:"kind"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	Points   []geom.Point   `json:"points"`
	Width    float64        `json:"width"`
	HitWidth float64        `json:"hit_width"`
	Priority int            `json:"priority"`
	Style    string         `json:"style"`
	Lane     float64        `json:"lane"`
	Bend     float64        `json:"bend"`
	Emphasis Emphasis       `json:"emphasis"`
	Alpha    float64        `json:"alpha"`

	Trade     *TradeAttrs     `json:"trade,omitempty"`
	Diplomacy *DiplomacyAttrs `json:"diplomacy,omitempty"`
	Migration *MigrationAttrs `json:"migration,omitempty"`
	Knowledge *KnowledgeAttrs `json:"knowledge,omitempty"`
}

// Viewport maps world coordinates onto the canvas.
type Viewport struct {
	World  model.WorldDims
	Width  float64
	Height float64
}

func (v Viewport) Project(p geom.Point) geom.Point {
	w, h := v.World.Width, v.World.Height
	if w <= 0 {
		w = model.DefaultWorldWidth
	}
	if h <= 0 {
		h = model.DefaultWorldHeight
	}
	return geom.Point{X: p.X / w * v.Width, Y: p.Y / h * v.Height}
}

func finite(p geom.Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

func emphasisFor(fc *focus.Context, inFocus bool) Emphasis {
	switch {
	case fc == nil:
		return EmphasisNone
	case inFocus:
		return EmphasisRelated
	default:
		return EmphasisFaded
	}
}

// Trade lays out trade routes in input order.
func Trade(routes []model.TradeRoute, vp Viewport, fc *focus.Context) []Polyline {
	prof := ProfileFor(model.LinkTrade)
	keys := make([]string, len(routes))
	for i, r := range routes {
		keys[i] = model.PairKey(r.From, r.To)
	}
	lanes := NewLanes(keys)
	out := make([]Polyline, 0, len(routes))
	for i, r := range routes {
		lane := lanes.Next(keys[i])
		a, b := vp.Project(r.FromPos), vp.Project(r.ToPos)
		if !finite(a) || !finite(b) {
			continue
		}
		pts, bend := prof.Curve(a, b, lane, i)

		focused := fc != nil
		direct := fc.IsDirectRoute(r.From, r.To)
		related := !focused || direct || (fc.IsRelatedSettlement(r.From) && fc.IsRelatedSettlement(r.To))
		faded := focused && !related

		heavy := r.Volume > 30
		width := 1.0
		if heavy {
			width = 3 + math.Min(4, r.Volume/20)
		}
		alpha := 1.0
		emph := EmphasisNone
		switch {
		case direct:
			width += 1.4
			alpha = 1.2
			emph = EmphasisDirect
		case faded:
			width = math.Max(0.9, width*0.9)
			alpha = 0.58
			emph = EmphasisFaded
		case focused:
			width = math.Max(1, width*0.96)
			alpha = 0.86
			emph = EmphasisRelated
		}

		style := StyleStandard
		rel := r.Reliability
		if rel == 0 {
			rel = 1
		}
		if geom.Clamp(rel, 0.2, 1.3) < 0.55 {
			style = StyleFragile
		}
		priority := 1
		switch {
		case direct:
			style = StyleDirect
			priority = 6
		case related:
			priority = 3
		}

		out = append(out, Polyline{
			Kind:     model.LinkTrade,
			From:     r.From,
			To:       r.To,
			Points:   pts,
			Width:    width,
			HitWidth: math.Max(8, width+6),
			Priority: priority,
			Style:    style,
			Lane:     lane,
			Bend:     bend,
			Emphasis: emph,
			Alpha:    alpha,
			Trade: &TradeAttrs{
				Volume:      r.Volume,
				Reliability: r.Reliability,
				Momentum:    r.Momentum,
				Distance:    r.Distance,
			},
		})
	}
	return out
}

// Diplomacy lays out civilization relations; endpoints are civ ids.
func Diplomacy(lines []model.DiplomacyLine, vp Viewport, fc *focus.Context) []Polyline {
	prof := ProfileFor(model.LinkDiplomacy)
	keys := make([]string, len(lines))
	for i, l := range lines {
		keys[i] = model.PairKey(l.CivA, l.CivB)
	}
	lanes := NewLanes(keys)
	out := make([]Polyline, 0, len(lines))
	for i, l := range lines {
		lane := lanes.Next(keys[i])
		a, b := vp.Project(l.From), vp.Project(l.To)
		if !finite(a) || !finite(b) {
			continue
		}
		pts, bend := prof.Curve(a, b, lane, i)

		touches := fc.IncludesSelectedCiv(l.CivA, l.CivB)
		related := fc == nil || touches || (fc.IsRelatedCiv(l.CivA) && fc.IsRelatedCiv(l.CivB))
		alpha := 0.58
		if related {
			alpha = 0.92
			if touches {
				alpha = 1.05
			}
		}

		var width float64
		var style string
		if l.Relation < -0.1 {
			style = StyleHostile
			width = 2
			if touches {
				width = 3
			}
		} else {
			width = 1 + l.Relation*2
			if touches {
				width += 0.9
			}
			style = StyleNeutral
			if l.Relation > 0.2 {
				style = StyleCooperative
			}
		}
		priority := 2
		emph := emphasisFor(fc, related)
		if touches {
			priority = 5
			emph = EmphasisDirect
		}

		out = append(out, Polyline{
			Kind:      model.LinkDiplomacy,
			From:      l.CivA,
			To:        l.CivB,
			Points:    pts,
			Width:     width,
			HitWidth:  math.Max(9, width+6),
			Priority:  priority,
			Style:     style,
			Lane:      lane,
			Bend:      bend,
			Emphasis:  emph,
			Alpha:     alpha,
			Diplomacy: &DiplomacyAttrs{Relation: l.Relation, Color: l.Color},
		})
	}
	return out
}

// Migration lays out streams between settlement centers. Streams with a
// missing or inactive endpoint are skipped.
func Migration(streams []model.MigrationStream, byID map[model.SettlementID]*model.Settlement, vp Viewport, fc *focus.Context) []Polyline {
	prof := ProfileFor(model.LinkMigration)
	keys := make([]string, len(streams))
	for i, s := range streams {
		keys[i] = model.PairKey(s.From, s.To)
	}
	lanes := NewLanes(keys)
	out := make([]Polyline, 0, len(streams))
	for i, s := range streams {
		from, okA := byID[s.From]
		to, okB := byID[s.To]
		if !okA || !okB || !from.Active() || !to.Active() {
			continue
		}
		lane := lanes.Next(keys[i])
		a, b := vp.Project(from.Center), vp.Project(to.Center)
		if !finite(a) || !finite(b) {
			continue
		}
		pts, bend := prof.Curve(a, b, lane, i)

		inFocus := fc.IsRelatedSettlement(s.From) && fc.IsRelatedSettlement(s.To)
		width := 0.6 + s.Intensity*2.2
		hit := math.Max(8.5, width+6)
		priority := 1
		alpha := 0.52
		if inFocus {
			priority = 4
			alpha = 1
		} else {
			width = math.Max(0.5, width*0.65)
		}

		out = append(out, Polyline{
			Kind:      model.LinkMigration,
			From:      s.From,
			To:        s.To,
			Points:    pts,
			Width:     width,
			HitWidth:  hit,
			Priority:  priority,
			Style:     StyleMigration,
			Lane:      lane,
			Bend:      bend,
			Emphasis:  emphasisFor(fc, inFocus),
			Alpha:     alpha,
			Migration: &MigrationAttrs{Intensity: s.Intensity},
		})
	}
	return out
}

// Knowledge lays out derived knowledge links.
func Knowledge(links []model.KnowledgeLink, vp Viewport, fc *focus.Context) []Polyline {
	prof := ProfileFor(model.LinkKnowledge)
	keys := make([]string, len(links))
	for i, k := range links {
		keys[i] = model.PairKey(k.From, k.To)
	}
	lanes := NewLanes(keys)
	out := make([]Polyline, 0, len(links))
	for i, k := range links {
		lane := lanes.Next(keys[i])
		a, b := vp.Project(k.FromPos), vp.Project(k.ToPos)
		if !finite(a) || !finite(b) {
			continue
		}
		pts, bend := prof.Curve(a, b, lane, i)

		inFocus := fc.IsRelatedSettlement(k.From) && fc.IsRelatedSettlement(k.To)
		width := 1.15
		priority := 2
		alpha := 0.45
		if inFocus {
			width = 1.5 + k.Score*3.2
			priority = 5
			alpha = 1
		}
		diffusion := k.Gap
		if diffusion == 0 {
			diffusion = k.Score
		}

		out = append(out, Polyline{
			Kind:      model.LinkKnowledge,
			From:      k.From,
			To:        k.To,
			Points:    pts,
			Width:     width,
			HitWidth:  math.Max(11, width+8),
			Priority:  priority,
			Style:     StyleKnowledge,
			Lane:      lane,
			Bend:      bend,
			Emphasis:  emphasisFor(fc, inFocus),
			Alpha:     alpha,
			Knowledge: &KnowledgeAttrs{Diffusion: diffusion, Score: k.Score},
		})
	}
	return out
}
