// Package model holds the canonical snapshot shape used by every engine
// component. Wire payloads are normalized into these types once, at ingest.
package model

import (
	"civscope.ai/internal/geom"
)

type (
	SettlementID = string
	CivID        = string
	EraID        = string
)

const (
	DefaultWorldWidth  = 96
	DefaultWorldHeight = 96
)

type WorldDims struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Snapshot struct {
	Tick  uint64    `json:"tick"`
	World WorldDims `json:"world"`

	Settlements   []Settlement      `json:"settlements"`
	Civilizations []Civilization    `json:"civilizations"`
	Trade         []TradeRoute      `json:"trade_routes"`
	Diplomacy     []DiplomacyLine   `json:"diplomacy_lines"`
	Migration     []MigrationStream `json:"migration_streams"`
	Events        []Event           `json:"events,omitempty"`
	Eras          EraHistory        `json:"era_history"`
}

type Settlement struct {
	ID         SettlementID `json:"id"`
	Name       string       `json:"name,omitempty"`
	Center     geom.Point   `json:"center"`
	Population float64      `json:"population"`
	CivID      CivID        `json:"civ_id,omitempty"`
	Ruined     bool         `json:"ruined,omitempty"`
	// Members is -1 when the source did not report a member list.
	Members int    `json:"members"`
	Role    string `json:"role,omitempty"`

	Stability       float64 `json:"stability"`
	CompositeStress float64 `json:"composite_stress"`
	EconomicStress  float64 `json:"economic_stress"`
	ConflictRate    float64 `json:"conflict_rate"`
	KnowledgeLevel  float64 `json:"knowledge_level"`
	Wealth          float64 `json:"wealth"`
}

// Active reports whether the settlement is inhabited. A reported member list
// takes precedence over population.
func (s Settlement) Active() bool {
	if s.Members >= 0 {
		return s.Members > 0
	}
	return s.Population > 0 && !s.Ruined
}

type Civilization struct {
	ID              CivID          `json:"id"`
	Name            string         `json:"name,omitempty"`
	SettlementIDs   []SettlementID `json:"settlement_ids,omitempty"`
	Centroid        geom.Point     `json:"centroid"`
	InfluenceRadius float64        `json:"influence_radius,omitempty"`
}

type TradeRoute struct {
	From                  SettlementID `json:"from"`
	To                    SettlementID `json:"to"`
	FromPos               geom.Point   `json:"from_pos"`
	ToPos                 geom.Point   `json:"to_pos"`
	Volume                float64      `json:"volume"`
	Reliability           float64      `json:"reliability"`
	Momentum              float64      `json:"momentum"`
	Distance              float64      `json:"distance"`
	InnovationReliability float64      `json:"innovation_reliability"`
}

type DiplomacyLine struct {
	CivA     CivID      `json:"civ_a"`
	CivB     CivID      `json:"civ_b"`
	Relation float64    `json:"relation"`
	Color    string     `json:"color,omitempty"`
	From     geom.Point `json:"from"`
	To       geom.Point `json:"to"`
}

type MigrationStream struct {
	From      SettlementID `json:"from"`
	To        SettlementID `json:"to"`
	Intensity float64      `json:"intensity"`
}

// KnowledgeLink is derived per frame from trade routes; it never arrives on the wire.
type KnowledgeLink struct {
	From    SettlementID `json:"from"`
	To      SettlementID `json:"to"`
	FromPos geom.Point   `json:"from_pos"`
	ToPos   geom.Point   `json:"to_pos"`
	Gap     float64      `json:"gap"`
	Score   float64      `json:"score"`
}

type Event struct {
	Tick         uint64       `json:"tick"`
	Type         string       `json:"type"`
	SettlementID SettlementID `json:"settlement_id,omitempty"`
	Message      string       `json:"message,omitempty"`
}

const (
	EntryEra       = "era"
	EntryMilestone = "milestone"
)

type EraRecord struct {
	ID        EraID  `json:"id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	EntryType string `json:"entry_type"`
	StartTick uint64 `json:"start_tick"`
	// EndTick is never below StartTick.
	EndTick               uint64         `json:"end_tick"`
	AffectedSettlementIDs []SettlementID `json:"affected_settlement_ids,omitempty"`
}

type EraHistory struct {
	CurrentEraID EraID       `json:"current_era_id,omitempty"`
	Eras         []EraRecord `json:"eras,omitempty"`
	Milestones   []EraRecord `json:"milestones,omitempty"`
	Entries      []EraRecord `json:"entries,omitempty"`
}

// Records is the list era lookups search: entries when present, else eras.
func (h EraHistory) Records() []EraRecord {
	if len(h.Entries) > 0 {
		return h.Entries
	}
	return h.Eras
}

func (h EraHistory) Lookup(id EraID) (EraRecord, bool) {
	if id == "" {
		return EraRecord{}, false
	}
	for _, e := range h.Records() {
		if e.ID == id {
			return e, true
		}
	}
	return EraRecord{}, false
}

// Current returns the era named by CurrentEraID, falling back to the last era.
func (h EraHistory) Current() (EraRecord, bool) {
	if len(h.Eras) == 0 {
		return EraRecord{}, false
	}
	for _, e := range h.Eras {
		if e.ID == h.CurrentEraID {
			return e, true
		}
	}
	return h.Eras[len(h.Eras)-1], true
}

func (s *Snapshot) SettlementIndex() map[SettlementID]*Settlement {
	m := make(map[SettlementID]*Settlement, len(s.Settlements))
	for i := range s.Settlements {
		m[s.Settlements[i].ID] = &s.Settlements[i]
	}
	return m
}

func (s *Snapshot) Dims() WorldDims {
	d := s.World
	if d.Width <= 0 {
		d.Width = DefaultWorldWidth
	}
	if d.Height <= 0 {
		d.Height = DefaultWorldHeight
	}
	return d
}
