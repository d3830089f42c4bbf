package engine

import (
	"errors"
	"math"

	"civscope.ai/internal/explorer/layout"
	"civscope.ai/internal/explorer/model"
	"civscope.ai/internal/geom"
)

// User intents. Each runs synchronously on the loop goroutine.

var ErrBadCanvas = errors.New("canvas dimensions must be positive and finite")

func (e *Engine) Selected() model.SettlementID { return e.selected }

// SelectEntity sets or, with "", clears the selected settlement.
func (e *Engine) SelectEntity(id model.SettlementID) {
	e.selected = id
	e.touch()
}

// SelectAt selects the nearest settlement whose hit circle contains p
// (canvas coordinates). A miss clears the selection.
func (e *Engine) SelectAt(p geom.Point) model.SettlementID {
	snap, ok := e.play.ViewSnapshot()
	if !ok {
		e.SelectEntity("")
		return ""
	}
	pad := 8.0
	if e.selected != "" {
		if _, ok := snap.SettlementIndex()[e.selected]; ok {
			pad = 10
		}
	}
	vp := layout.Viewport{World: snap.Dims(), Width: e.canvas.Width, Height: e.canvas.Height}
	best, bestDist := "", math.Inf(1)
	for i := range snap.Settlements {
		s := &snap.Settlements[i]
		d := vp.Project(s.Center).Dist(p)
		if d <= nodeRadius(s.Population)+pad && d < bestDist {
			best, bestDist = s.ID, d
		}
	}
	e.SelectEntity(best)
	return best
}

// SetPointer updates the hover pointer; nil means the pointer left the canvas.
func (e *Engine) SetPointer(p *geom.Point) {
	if p == nil {
		e.pointer = nil
	} else {
		c := *p
		e.pointer = &c
	}
	e.touch()
}

func (e *Engine) SetCanvas(width, height, scale float64) error {
	for _, v := range []float64{width, height, scale} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrBadCanvas
		}
	}
	e.canvas = Canvas{Width: width, Height: height, Scale: scale}
	e.touch()
	return nil
}

func (e *Engine) GoLive() {
	e.play.GoLive()
	e.touch()
}

func (e *Engine) Pause() {
	e.play.Pause()
	e.touch()
}

func (e *Engine) Resume() {
	e.play.Resume()
	e.touch()
}

func (e *Engine) TogglePause() {
	e.play.TogglePause()
	e.touch()
}

func (e *Engine) Scrub(tick uint64) {
	e.play.Scrub(tick)
	e.touch()
}

func (e *Engine) StartReplay() bool {
	ok := e.play.StartReplay()
	e.touch()
	return ok
}

func (e *Engine) StopReplay() {
	e.play.StopReplay()
	e.touch()
}

func (e *Engine) ToggleReplay() {
	e.play.ToggleReplay()
	e.touch()
}

// SelectEra reports false for an era the view snapshot does not know.
func (e *Engine) SelectEra(id model.EraID) bool {
	if !e.play.SelectEra(id) {
		return false
	}
	e.touch()
	return true
}

func (e *Engine) ClearEra() {
	e.play.ClearEra()
	e.touch()
}

func (e *Engine) HoverEra(id model.EraID) {
	e.play.HoverEra(id)
	e.touch()
}

// SetLinkModeFilter returns the mode in effect; unknown modes become "all".
func (e *Engine) SetLinkModeFilter(mode string) string {
	e.linkMode = model.NormalizeLinkMode(mode)
	e.touch()
	return e.linkMode
}

func (e *Engine) LinkMode() string { return e.linkMode }
