package engine

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"civscope.ai/internal/explorer/focus"
	"civscope.ai/internal/explorer/history"
	"civscope.ai/internal/explorer/hover"
	"civscope.ai/internal/explorer/layout"
	"civscope.ai/internal/explorer/model"
	"civscope.ai/internal/explorer/playback"
	"civscope.ai/internal/geom"
	"civscope.ai/internal/metrics"
)

// Node is a settlement placed on the canvas.
type Node struct {
	ID          model.SettlementID `json:"id"`
	Name        string             `json:"name,omitempty"`
	CivID       model.CivID        `json:"civ_id,omitempty"`
	Pos         geom.Point         `json:"pos"`
	Radius      float64            `json:"radius"`
	HitRadius   float64            `json:"hit_radius"`
	Population  float64            `json:"population"`
	Role        string             `json:"role,omitempty"`
	Active      bool               `json:"active"`
	Selected    bool               `json:"selected,omitempty"`
	Related     bool               `json:"related,omitempty"`
	Highlighted bool               `json:"highlighted,omitempty"`
}

// Frame is an immutable picture of the engine at one revision.
type Frame struct {
	Revision   uint64          `json:"revision"`
	Tick       uint64          `json:"tick"`
	LatestTick uint64          `json:"latest_tick"`
	Status     playback.Status `json:"status"`
	LinkMode   string          `json:"link_mode"`
	Canvas     Canvas          `json:"canvas"`
	SelectedID string          `json:"selected_id,omitempty"`

	Nodes []Node                               `json:"nodes"`
	Links map[model.LinkKind][]layout.Polyline `json:"links"`
	Focus *focus.Lists                         `json:"focus,omitempty"`
	Hover *hover.Result                        `json:"hover,omitempty"`

	HighlightSettlementIDs []model.SettlementID `json:"highlight_settlement_ids,omitempty"`
	ActiveEra              *model.EraRecord     `json:"active_era,omitempty"`

	// Trend covers the visible ticks up to Tick, newest last.
	Trend []history.TrendPoint `json:"trend,omitempty"`

	// Snapshot is the displayed snapshot; transports send it separately.
	Snapshot *model.Snapshot `json:"-"`
}

// LinkCount totals polylines across kinds.
func (f *Frame) LinkCount() int {
	n := 0
	for _, ls := range f.Links {
		n += len(ls)
	}
	return n
}

func nodeRadius(pop float64) float64 {
	return 4 + math.Sqrt(math.Max(0, pop))*0.7
}

// ComputeFrame derives the frame for the current state without mutating it.
func (e *Engine) ComputeFrame() *Frame {
	timer := prometheus.NewTimer(metrics.FrameDuration)
	defer timer.ObserveDuration()

	st := e.play.Status()
	f := &Frame{
		Revision:   e.revision,
		Tick:       st.Tick,
		LatestTick: e.latestTick,
		Status:     st,
		LinkMode:   e.linkMode,
		Canvas:     e.canvas,
		SelectedID: e.selected,
		Links:      map[model.LinkKind][]layout.Polyline{},
	}
	snap, ok := e.play.ViewSnapshot()
	if !ok {
		return f
	}
	f.Snapshot = snap
	f.Trend = e.store.Trend(e.play.VisibleDomain(), st.Tick, history.TrendWindow)
	vp := layout.Viewport{World: snap.Dims(), Width: e.canvas.Width, Height: e.canvas.Height}
	byID := snap.SettlementIndex()

	activeIDs := map[model.SettlementID]struct{}{}
	activeCivs := map[model.CivID]struct{}{}
	for i := range snap.Settlements {
		s := &snap.Settlements[i]
		if !s.Active() {
			continue
		}
		activeIDs[s.ID] = struct{}{}
		if s.CivID != "" {
			activeCivs[s.CivID] = struct{}{}
		}
	}

	trade := make([]model.TradeRoute, 0, len(snap.Trade))
	for _, r := range snap.Trade {
		_, a := activeIDs[r.From]
		_, b := activeIDs[r.To]
		if a && b {
			trade = append(trade, r)
		}
	}
	if lock, ok := e.play.Era(); ok {
		if rec, ok := snap.Eras.Lookup(lock.ID); ok && len(rec.AffectedSettlementIDs) > 0 {
			trade = touching(trade, rec.AffectedSettlementIDs)
		}
	}
	diplomacy := make([]model.DiplomacyLine, 0, len(snap.Diplomacy))
	for _, l := range snap.Diplomacy {
		_, a := activeCivs[l.CivA]
		_, b := activeCivs[l.CivB]
		if a && b {
			diplomacy = append(diplomacy, l)
		}
	}

	fc := focus.Build(e.selected, snap.Settlements, trade, diplomacy)
	f.Focus = fc.Lists()

	var candidates []layout.Polyline
	for _, k := range model.Kinds {
		if !model.LinkModeShows(e.linkMode, k) {
			continue
		}
		var polys []layout.Polyline
		switch k {
		case model.LinkKnowledge:
			polys = layout.Knowledge(layout.DeriveKnowledge(trade, byID), vp, fc)
		case model.LinkMigration:
			polys = layout.Migration(snap.Migration, byID, vp, fc)
		case model.LinkDiplomacy:
			polys = layout.Diplomacy(diplomacy, vp, fc)
		case model.LinkTrade:
			polys = layout.Trade(trade, vp, fc)
		}
		f.Links[k] = polys
		candidates = append(candidates, polys...)
	}
	hp := e.hover
	hp.Scale = e.canvas.Scale
	f.Hover = hover.Resolve(e.pointer, candidates, hp)

	highlight := map[model.SettlementID]struct{}{}
	if id := e.play.ActiveEraID(); id != "" {
		if rec, ok := snap.Eras.Lookup(id); ok {
			r := rec
			f.ActiveEra = &r
			f.HighlightSettlementIDs = append([]model.SettlementID(nil), rec.AffectedSettlementIDs...)
			for _, sid := range rec.AffectedSettlementIDs {
				highlight[sid] = struct{}{}
			}
		}
	}
	f.Nodes = buildNodes(snap, vp, fc, highlight)
	return f
}

func touching(routes []model.TradeRoute, ids []model.SettlementID) []model.TradeRoute {
	set := make(map[model.SettlementID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	out := routes[:0:0]
	for _, r := range routes {
		_, a := set[r.From]
		_, b := set[r.To]
		if a || b {
			out = append(out, r)
		}
	}
	return out
}

func buildNodes(snap *model.Snapshot, vp layout.Viewport, fc *focus.Context, highlight map[model.SettlementID]struct{}) []Node {
	pad := 8.0
	if fc != nil {
		pad = 10
	}
	out := make([]Node, 0, len(snap.Settlements))
	for i := range snap.Settlements {
		s := &snap.Settlements[i]
		r := nodeRadius(s.Population)
		_, hl := highlight[s.ID]
		out = append(out, Node{
			ID:          s.ID,
			Name:        s.Name,
			CivID:       s.CivID,
			Pos:         vp.Project(s.Center),
			Radius:      r,
			HitRadius:   r + pad,
			Population:  s.Population,
			Role:        s.Role,
			Active:      s.Active(),
			Selected:    fc != nil && fc.SelectedID == s.ID,
			Related:     fc != nil && fc.IsRelatedSettlement(s.ID),
			Highlighted: hl,
		})
	}
	return out
}

// Subscription receives published frames. Only the newest frame is kept
// when the reader falls behind.
type Subscription struct {
	id uint64
	C  <-chan *Frame
	ch chan *Frame
}

// Subscribe registers a frame consumer. The current frame, if any, is
// delivered immediately.
func (e *Engine) Subscribe(buf int) (*Subscription, func()) {
	if buf <= 0 {
		buf = 1
	}
	ch := make(chan *Frame, buf)
	e.subsMu.Lock()
	e.nextSub++
	sub := &Subscription{id: e.nextSub, C: ch, ch: ch}
	e.subs[sub.id] = sub
	n := len(e.subs)
	e.subsMu.Unlock()
	metrics.Subscribers.Set(float64(n))

	if f := e.last.Load(); f != nil {
		sendLatest(ch, f)
	}
	var once bool
	return sub, func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		if once {
			return
		}
		once = true
		if _, ok := e.subs[sub.id]; ok {
			delete(e.subs, sub.id)
			close(sub.ch)
		}
		metrics.Subscribers.Set(float64(len(e.subs)))
	}
}

func (e *Engine) publish(f *Frame) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, s := range e.subs {
		if sendLatest(s.ch, f) {
			metrics.FramesDropped.Inc()
		}
	}
	metrics.FramesPublished.Inc()
}

func (e *Engine) closeSubscribers() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for id, s := range e.subs {
		close(s.ch)
		delete(e.subs, id)
	}
	metrics.Subscribers.Set(0)
}

// sendLatest never blocks; it reports whether an older frame was dropped.
func sendLatest(ch chan *Frame, f *Frame) (dropped bool) {
	select {
	case ch <- f:
		return false
	default:
	}
	select {
	case <-ch:
		dropped = true
	default:
	}
	select {
	case ch <- f:
	default:
	}
	return dropped
}
