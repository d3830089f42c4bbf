// Package stateproto holds the wire types served by the simulation's
// /api/state endpoint. Fields the source may omit are pointers; ingest
// resolves every fallback when it normalizes a batch.
package stateproto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an identifier the source may encode as a JSON number or string.
// It always holds the decimal string form.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = ID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ID(n.String())
	return nil
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type World struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// StateBatch is one response of GET /api/state.
type StateBatch struct {
	CurrentTick  uint64      `json:"currentTick"`
	LatestTick   uint64      `json:"latestTick"`
	Snapshots    []Snapshot  `json:"snapshots"`
	EraHistory   *EraHistory `json:"eraHistory,omitempty"`
	RecentEvents []Event     `json:"recentEvents,omitempty"`
}

type Snapshot struct {
	Tick             uint64            `json:"tick"`
	World            *World            `json:"world,omitempty"`
	Settlements      []Settlement      `json:"settlements"`
	Civilizations    []Civilization    `json:"civilizations,omitempty"`
	TradeRoutes      []TradeRoute      `json:"tradeRoutes,omitempty"`
	DiplomacyLines   []DiplomacyLine   `json:"diplomacyLines,omitempty"`
	MigrationStreams []MigrationStream `json:"migrationStreams,omitempty"`
	EraHistory       *EraHistory       `json:"eraHistory,omitempty"`
	Events           []Event           `json:"events,omitempty"`
}

type Knowledge struct {
	Farming    float64 `json:"farming"`
	Medicine   float64 `json:"medicine"`
	Governance float64 `json:"governance"`
	Logistics  float64 `json:"logistics"`
}

type Settlement struct {
	ID             ID       `json:"id"`
	Name           string   `json:"name,omitempty"`
	Center         *Point   `json:"center,omitempty"`
	CenterPosition *Point   `json:"centerPosition,omitempty"`
	Population     float64  `json:"population"`
	CivID          ID       `json:"civId,omitempty"`
	IsRuined       *bool    `json:"isRuined,omitempty"`
	Members        []ID     `json:"members,omitempty"`
	Role           string   `json:"role,omitempty"`
	Stability      *float64 `json:"stability,omitempty"`
	StabilityScore *float64 `json:"stabilityScore,omitempty"`

	CompositeStress float64    `json:"compositeStress,omitempty"`
	EconomicStress  float64    `json:"economicStress,omitempty"`
	ConflictRate    *float64   `json:"conflictRate,omitempty"`
	KnowledgeLevel  *float64   `json:"knowledgeLevel,omitempty"`
	Knowledge       *Knowledge `json:"knowledge,omitempty"`
	Wealth          *float64   `json:"wealth,omitempty"`
	Resources       *Resources `json:"resources,omitempty"`
}

// Resources is the settlement stockpile; only wealth is read.
type Resources struct {
	Wealth *float64 `json:"wealth,omitempty"`
}

type Civilization struct {
	ID              ID      `json:"id"`
	Name            string  `json:"name,omitempty"`
	SettlementIDs   []ID    `json:"settlementIds,omitempty"`
	Centroid        *Point  `json:"centroid,omitempty"`
	InfluenceRadius float64 `json:"influenceRadius,omitempty"`
}

type TradeRoute struct {
	From                       ID       `json:"from"`
	To                         ID       `json:"to"`
	FromPosition               *Point   `json:"fromPosition,omitempty"`
	ToPosition                 *Point   `json:"toPosition,omitempty"`
	TradeVolume                *float64 `json:"tradeVolume,omitempty"`
	Trades                     *float64 `json:"trades,omitempty"`
	RouteReliability           *float64 `json:"routeReliability,omitempty"`
	RouteMomentum              float64  `json:"routeMomentum,omitempty"`
	RouteDistance              *float64 `json:"routeDistance,omitempty"`
	Distance                   *float64 `json:"distance,omitempty"`
	RouteInnovationReliability *float64 `json:"routeInnovationReliability,omitempty"`
}

type DiplomacyLine struct {
	CivA     ID      `json:"civA"`
	CivB     ID      `json:"civB"`
	Relation float64 `json:"relation"`
	Color    string  `json:"color,omitempty"`
	From     *Point  `json:"from,omitempty"`
	To       *Point  `json:"to,omitempty"`
}

type MigrationStream struct {
	FromSettlementID ID      `json:"fromSettlementId"`
	ToSettlementID   ID      `json:"toSettlementId"`
	Intensity        float64 `json:"intensity"`
}

type GlobalState struct {
	AffectedSettlementIDs []ID `json:"affectedSettlementIds,omitempty"`
}

type EraRecord struct {
	ID                  ID           `json:"id"`
	Title               string       `json:"title,omitempty"`
	EraType             string       `json:"eraType,omitempty"`
	EntryType           string       `json:"entryType,omitempty"`
	StartTick           uint64       `json:"startTick"`
	EndTick             *uint64      `json:"endTick,omitempty"`
	Summary             string       `json:"summary,omitempty"`
	GlobalStateSnapshot *GlobalState `json:"globalStateSnapshot,omitempty"`
}

type EraHistory struct {
	CurrentEraID ID          `json:"currentEraId,omitempty"`
	Eras         []EraRecord `json:"eras,omitempty"`
	Milestones   []EraRecord `json:"milestones,omitempty"`
	Entries      []EraRecord `json:"entries,omitempty"`
}

type Event struct {
	Type         string `json:"type"`
	Tick         uint64 `json:"tick"`
	Message      string `json:"message,omitempty"`
	SettlementID ID     `json:"settlementId,omitempty"`
	SettlementA  ID     `json:"settlementA,omitempty"`
}
