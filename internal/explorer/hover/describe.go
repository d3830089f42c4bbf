package hover

import (
	"fmt"
	"math"

	"civscope.ai/internal/explorer/layout"
	"civscope.ai/internal/explorer/model"
)

// Descriptor is the tooltip content for a hovered edge. Tone is a style tag,
// not a color.
type Descriptor struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
	Tone  string   `json:"tone"`
}

// Describe dispatches on the polyline kind. Adding a kind means adding a case.
func Describe(p layout.Polyline) Descriptor {
	switch p.Kind {
	case model.LinkTrade:
		return describeTrade(p)
	case model.LinkDiplomacy:
		return describeDiplomacy(p)
	case model.LinkMigration:
		return describeMigration(p)
	case model.LinkKnowledge:
		return describeKnowledge(p)
	default:
		panic(fmt.Sprintf("hover: unknown link kind %q", p.Kind))
	}
}

func describeTrade(p layout.Polyline) Descriptor {
	var a layout.TradeAttrs
	if p.Trade != nil {
		a = *p.Trade
	}
	tone := "Regular exchange route."
	switch {
	case a.Reliability < 0.55:
		tone = "Fragile trade corridor: disruptions likely."
	case a.Volume > 22:
		tone = "Major supply artery: strong cross-settlement flow."
	}
	return Descriptor{
		Title: fmt.Sprintf("Trade Route S%s -> S%s", p.From, p.To),
		Lines: []string{
			fmt.Sprintf("Flow %.2f  |  Reliability %.2f", a.Volume, a.Reliability),
			fmt.Sprintf("Momentum %.4f  |  Distance %.1f", a.Momentum, a.Distance),
			tone,
		},
		Tone: "trade",
	}
}

func relationTone(v float64) string {
	switch {
	case v >= 0.45:
		return "Cooperative"
	case v <= -0.45:
		return "Hostile"
	default:
		return "Neutral"
	}
}

func describeDiplomacy(p layout.Polyline) Descriptor {
	var a layout.DiplomacyAttrs
	if p.Diplomacy != nil {
		a = *p.Diplomacy
	}
	posture := "Neutral posture: cautious contact."
	switch {
	case a.Relation > 0.25:
		posture = "Cooperative alignment: lower conflict pressure."
	case a.Relation < -0.2:
		posture = "Hostile alignment: frontier friction and conflict risk."
	}
	channel := "Solid line marks an active diplomatic channel."
	tone := "diplomacy"
	if p.Style == layout.StyleHostile {
		channel = "Dashed line marks active hostility."
		tone = "hostile"
	}
	return Descriptor{
		Title: fmt.Sprintf("Diplomacy %s <-> %s", p.From, p.To),
		Lines: []string{
			fmt.Sprintf("Relation %+.2f (%s)", a.Relation, relationTone(a.Relation)),
			channel,
			posture,
		},
		Tone: tone,
	}
}

func describeMigration(p layout.Polyline) Descriptor {
	var a layout.MigrationAttrs
	if p.Migration != nil {
		a = *p.Migration
	}
	return Descriptor{
		Title: fmt.Sprintf("Migration Stream S%s -> S%s", p.From, p.To),
		Lines: []string{
			fmt.Sprintf("Intensity %.2f  |  Dashed flow", a.Intensity),
			"Population relocating between settlements.",
			"High intensity can reshape local pressure and growth.",
		},
		Tone: "migration",
	}
}

func describeKnowledge(p layout.Polyline) Descriptor {
	var a layout.KnowledgeAttrs
	if p.Knowledge != nil {
		a = *p.Knowledge
	}
	return Descriptor{
		Title: fmt.Sprintf("Knowledge Diffusion S%s -> S%s", p.From, p.To),
		Lines: []string{
			fmt.Sprintf("Knowledge gap %.0f%%", math.Max(0, a.Diffusion)*100),
			"Dashed links trace idea and practice spread.",
			"Higher gaps imply stronger one-way learning pressure.",
		},
		Tone: "knowledge",
	}
}
