package ingest

import (
	"math"

	"civscope.ai/internal/explorer/model"
	"civscope.ai/internal/geom"
	"civscope.ai/internal/stateproto"
)

// NormalizeBatch converts every snapshot of b in array order. A snapshot
// without its own era history inherits the batch-level one.
func NormalizeBatch(b stateproto.StateBatch) []model.Snapshot {
	out := make([]model.Snapshot, 0, len(b.Snapshots))
	for i := range b.Snapshots {
		out = append(out, Normalize(b.Snapshots[i], b.EraHistory))
	}
	return out
}

// Normalize resolves every field fallback of the wire snapshot.
func Normalize(w stateproto.Snapshot, batchEras *stateproto.EraHistory) model.Snapshot {
	snap := model.Snapshot{Tick: w.Tick}
	if w.World != nil {
		snap.World = model.WorldDims{Width: w.World.Width, Height: w.World.Height}
	}
	snap.World = snap.Dims()

	snap.Settlements = normalizeSettlements(w.Settlements)
	byID := snap.SettlementIndex()
	snap.Civilizations = normalizeCivilizations(w.Civilizations, snap.Settlements, byID)
	civByID := make(map[model.CivID]*model.Civilization, len(snap.Civilizations))
	for i := range snap.Civilizations {
		civByID[snap.Civilizations[i].ID] = &snap.Civilizations[i]
	}

	snap.Trade = make([]model.TradeRoute, 0, len(w.TradeRoutes))
	for _, r := range w.TradeRoutes {
		snap.Trade = append(snap.Trade, normalizeTrade(r, byID))
	}
	snap.Diplomacy = make([]model.DiplomacyLine, 0, len(w.DiplomacyLines))
	for _, l := range w.DiplomacyLines {
		snap.Diplomacy = append(snap.Diplomacy, normalizeDiplomacy(l, civByID))
	}
	snap.Migration = make([]model.MigrationStream, 0, len(w.MigrationStreams))
	for _, m := range w.MigrationStreams {
		snap.Migration = append(snap.Migration, model.MigrationStream{
			From:      string(m.FromSettlementID),
			To:        string(m.ToSettlementID),
			Intensity: m.Intensity,
		})
	}
	for _, e := range w.Events {
		snap.Events = append(snap.Events, NormalizeEvent(e))
	}

	eras := w.EraHistory
	if eras == nil {
		eras = batchEras
	}
	snap.Eras = NormalizeEras(eras)
	return snap
}

func point(p *stateproto.Point) (geom.Point, bool) {
	if p == nil {
		return geom.Point{}, false
	}
	return geom.Point{X: p.X, Y: p.Y}, true
}

func normalizeSettlements(in []stateproto.Settlement) []model.Settlement {
	out := make([]model.Settlement, 0, len(in))
	seen := make(map[model.SettlementID]struct{}, len(in))
	for _, s := range in {
		id := string(s.ID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		center, ok := point(s.Center)
		if !ok {
			center, _ = point(s.CenterPosition)
		}
		members := -1
		if s.Members != nil {
			members = len(s.Members)
		}
		ruined := s.IsRuined != nil && *s.IsRuined
		stability := 0.0
		switch {
		case s.Stability != nil:
			stability = *s.Stability
		case s.StabilityScore != nil:
			stability = *s.StabilityScore
		}
		conflict, _ := finite(s.ConflictRate)
		out = append(out, model.Settlement{
			ID:              id,
			Name:            s.Name,
			Center:          center,
			Population:      s.Population,
			CivID:           string(s.CivID),
			Ruined:          ruined,
			Members:         members,
			Role:            s.Role,
			Stability:       stability,
			CompositeStress: s.CompositeStress,
			EconomicStress:  s.EconomicStress,
			ConflictRate:    conflict,
			KnowledgeLevel:  knowledgeLevel(s),
			Wealth:          wealth(s),
		})
	}
	return out
}

// wealth prefers the stockpile figure over the flat field.
func wealth(s stateproto.Settlement) float64 {
	if s.Resources != nil {
		if w, ok := finite(s.Resources.Wealth); ok {
			return w
		}
	}
	w, _ := finite(s.Wealth)
	return w
}

func finite(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

// knowledgeLevel prefers the reported level, else the mean of the four
// clamped knowledge tracks.
func knowledgeLevel(s stateproto.Settlement) float64 {
	if s.KnowledgeLevel != nil {
		return geom.Clamp01(*s.KnowledgeLevel)
	}
	if s.Knowledge == nil {
		return 0
	}
	k := s.Knowledge
	return (geom.Clamp01(k.Farming) + geom.Clamp01(k.Medicine) + geom.Clamp01(k.Governance) + geom.Clamp01(k.Logistics)) / 4
}

func normalizeCivilizations(in []stateproto.Civilization, settlements []model.Settlement, byID map[model.SettlementID]*model.Settlement) []model.Civilization {
	out := make([]model.Civilization, 0, len(in))
	for _, c := range in {
		civ := model.Civilization{
			ID:              string(c.ID),
			Name:            c.Name,
			InfluenceRadius: c.InfluenceRadius,
		}
		for _, sid := range c.SettlementIDs {
			civ.SettlementIDs = append(civ.SettlementIDs, string(sid))
		}
		if p, ok := point(c.Centroid); ok {
			civ.Centroid = p
		} else {
			civ.Centroid = centroidOf(civ, settlements, byID)
		}
		out = append(out, civ)
	}
	return out
}

// centroidOf averages the centers of the civ's listed settlements, falling
// back to every settlement carrying its civ id.
func centroidOf(civ model.Civilization, settlements []model.Settlement, byID map[model.SettlementID]*model.Settlement) geom.Point {
	var sum geom.Point
	n := 0
	for _, sid := range civ.SettlementIDs {
		if s, ok := byID[sid]; ok {
			sum = sum.Add(s.Center)
			n++
		}
	}
	if n == 0 {
		for i := range settlements {
			if settlements[i].CivID == civ.ID {
				sum = sum.Add(settlements[i].Center)
				n++
			}
		}
	}
	if n == 0 {
		return geom.Point{}
	}
	return sum.Scale(1 / float64(n))
}

func normalizeTrade(r stateproto.TradeRoute, byID map[model.SettlementID]*model.Settlement) model.TradeRoute {
	out := model.TradeRoute{
		From:                  string(r.From),
		To:                    string(r.To),
		Momentum:              r.RouteMomentum,
		Reliability:           1,
		InnovationReliability: 1,
	}
	var ok bool
	if out.FromPos, ok = point(r.FromPosition); !ok {
		if s := byID[out.From]; s != nil {
			out.FromPos = s.Center
		}
	}
	if out.ToPos, ok = point(r.ToPosition); !ok {
		if s := byID[out.To]; s != nil {
			out.ToPos = s.Center
		}
	}
	switch {
	case r.TradeVolume != nil:
		out.Volume = *r.TradeVolume
	case r.Trades != nil:
		out.Volume = *r.Trades
	}
	if r.RouteReliability != nil {
		out.Reliability = *r.RouteReliability
	}
	if r.RouteInnovationReliability != nil {
		out.InnovationReliability = *r.RouteInnovationReliability
	}
	switch {
	case r.RouteDistance != nil && !math.IsNaN(*r.RouteDistance):
		out.Distance = *r.RouteDistance
	case r.Distance != nil && !math.IsNaN(*r.Distance):
		out.Distance = *r.Distance
	default:
		out.Distance = out.FromPos.Dist(out.ToPos)
	}
	return out
}

func normalizeDiplomacy(l stateproto.DiplomacyLine, civByID map[model.CivID]*model.Civilization) model.DiplomacyLine {
	out := model.DiplomacyLine{
		CivA:     string(l.CivA),
		CivB:     string(l.CivB),
		Relation: l.Relation,
		Color:    l.Color,
	}
	var ok bool
	if out.From, ok = point(l.From); !ok {
		if c := civByID[out.CivA]; c != nil {
			out.From = c.Centroid
		}
	}
	if out.To, ok = point(l.To); !ok {
		if c := civByID[out.CivB]; c != nil {
			out.To = c.Centroid
		}
	}
	return out
}

func NormalizeEvent(e stateproto.Event) model.Event {
	sid := e.SettlementID
	if sid == "" {
		sid = e.SettlementA
	}
	return model.Event{Tick: e.Tick, Type: e.Type, SettlementID: string(sid), Message: e.Message}
}

// NormalizeEras copies the history, defaulting entry types by list and
// clamping every end tick to at least its start.
func NormalizeEras(h *stateproto.EraHistory) model.EraHistory {
	if h == nil {
		return model.EraHistory{}
	}
	return model.EraHistory{
		CurrentEraID: string(h.CurrentEraID),
		Eras:         normalizeRecords(h.Eras, model.EntryEra),
		Milestones:   normalizeRecords(h.Milestones, model.EntryMilestone),
		Entries:      normalizeRecords(h.Entries, model.EntryEra),
	}
}

func normalizeRecords(in []stateproto.EraRecord, defaultType string) []model.EraRecord {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.EraRecord, 0, len(in))
	for _, r := range in {
		end := r.StartTick
		if r.EndTick != nil && *r.EndTick > end {
			end = *r.EndTick
		}
		entryType := r.EntryType
		if entryType == "" {
			entryType = defaultType
		}
		rec := model.EraRecord{
			ID:        string(r.ID),
			Title:     r.Title,
			Type:      r.EraType,
			EntryType: entryType,
			StartTick: r.StartTick,
			EndTick:   end,
		}
		if r.GlobalStateSnapshot != nil {
			for _, sid := range r.GlobalStateSnapshot.AffectedSettlementIDs {
				rec.AffectedSettlementIDs = append(rec.AffectedSettlementIDs, string(sid))
			}
		}
		out = append(out, rec)
	}
	return out
}
