// Package playback decides which stored tick is on screen.
//
// The controller is driven from the engine loop. Replay stepping is a named
// scheduler task, so every transition that starts a new playback action
// cancels it first.
package playback

import (
	"time"

	"civscope.ai/internal/explorer/history"
	"civscope.ai/internal/explorer/model"
	"civscope.ai/internal/scheduler"
)

type Mode string

const (
	ModeLive      Mode = "LIVE"
	ModePaused    Mode = "PAUSED"
	ModeScrubbing Mode = "SCRUBBING"
	ModeReplaying Mode = "REPLAYING"
	ModeEraLocked Mode = "ERA_LOCKED"
)

// ReplayTask is the scheduler task name of the replay stepper.
const ReplayTask = "replay"

const DefaultReplayInterval = 120 * time.Millisecond

type EraLock struct {
	ID    model.EraID       `json:"id"`
	Range history.TickRange `json:"range"`
}

type Controller struct {
	store    *history.Store
	sched    *scheduler.Scheduler
	interval time.Duration

	mode    Mode
	current uint64
	era     *EraLock
	hovered model.EraID

	// OnChange runs after timer-driven transitions.
	OnChange func()
}

func New(store *history.Store, sched *scheduler.Scheduler, replayInterval time.Duration) *Controller {
	if replayInterval <= 0 {
		replayInterval = DefaultReplayInterval
	}
	return &Controller{
		store:    store,
		sched:    sched,
		interval: replayInterval,
		mode:     ModeLive,
	}
}

func (c *Controller) Mode() Mode { return c.mode }

// VisibleDomain is the era-restricted tick index (the full index without a lock).
func (c *Controller) VisibleDomain() []uint64 {
	if c.era == nil {
		return c.store.VisibleTicks(nil)
	}
	r := c.era.Range
	return c.store.VisibleTicks(&r)
}

// bounded falls back to the full index when the era range holds no ticks.
func (c *Controller) bounded() []uint64 {
	if d := c.VisibleDomain(); len(d) > 0 {
		return d
	}
	return c.store.VisibleTicks(nil)
}

// ViewTick resolves the tick to display, or 0 before any data arrives.
func (c *Controller) ViewTick() uint64 {
	b := c.bounded()
	if len(b) == 0 {
		return 0
	}
	if c.mode == ModeLive {
		return b[len(b)-1]
	}
	return history.NearestTick(c.current, b)
}

func (c *Controller) ViewSnapshot() (*model.Snapshot, bool) {
	if c.store.Len() == 0 {
		return nil, false
	}
	return c.store.Get(c.ViewTick())
}

func (c *Controller) parked() Mode {
	if c.era != nil {
		return ModeEraLocked
	}
	return ModePaused
}

func (c *Controller) cancelReplay() {
	c.sched.Cancel(ReplayTask)
}

// GoLive drops any era lock and follows the newest tick.
func (c *Controller) GoLive() {
	c.cancelReplay()
	c.era = nil
	c.hovered = ""
	c.mode = ModeLive
	c.current = c.store.Latest()
}

// Pause freezes the cursor on the tick currently in view.
func (c *Controller) Pause() {
	c.cancelReplay()
	c.current = c.ViewTick()
	c.mode = ModePaused
}

// Resume returns to Live at the newest visible tick. An era lock is kept.
func (c *Controller) Resume() {
	c.cancelReplay()
	c.mode = ModeLive
	if b := c.bounded(); len(b) > 0 {
		c.current = b[len(b)-1]
	}
}

// TogglePause resumes from any parked mode (paused, scrubbed or era-locked)
// and pauses while live or replaying.
func (c *Controller) TogglePause() {
	switch c.mode {
	case ModePaused, ModeScrubbing, ModeEraLocked:
		c.Resume()
	default:
		c.Pause()
	}
}

// Scrub parks the cursor at tick, clamped to the stored range.
func (c *Controller) Scrub(tick uint64) {
	c.cancelReplay()
	if c.store.Len() > 0 {
		if first := c.store.First(); tick < first {
			tick = first
		}
		if last := c.store.Latest(); tick > last {
			tick = last
		}
	}
	c.current = tick
	c.mode = ModeScrubbing
}

// StartReplay steps forward through the visible domain every replay
// interval. From the newest stored tick it rewinds to the start of the
// visible domain first. It reports whether stepping is active; with no
// further tick to reach it parks instead of starting a timer.
func (c *Controller) StartReplay() bool {
	if c.store.Len() == 0 {
		return false
	}
	if c.sched.Active(ReplayTask) {
		return true
	}
	b := c.bounded()
	start := c.ViewTick()
	if start >= c.store.Latest() {
		start = b[0]
	}
	c.current = start
	if _, ok := history.NextTickAfter(start, b); !ok {
		c.mode = c.parked()
		return false
	}
	c.mode = ModeReplaying
	c.sched.Every(ReplayTask, c.interval, func(time.Time) { c.step() })
	return true
}

func (c *Controller) step() {
	b := c.bounded()
	next, ok := history.NextTickAfter(c.current, b)
	if ok {
		c.current = next
		_, ok = history.NextTickAfter(next, b)
	}
	if !ok {
		c.cancelReplay()
		c.mode = c.parked()
	}
	if c.OnChange != nil {
		c.OnChange()
	}
}

// StopReplay is idempotent.
func (c *Controller) StopReplay() {
	c.cancelReplay()
	if c.mode == ModeReplaying {
		c.mode = c.parked()
	}
}

func (c *Controller) ToggleReplay() {
	if c.sched.Active(ReplayTask) {
		c.StopReplay()
		return
	}
	c.StartReplay()
}

func (c *Controller) Replaying() bool { return c.sched.Active(ReplayTask) }

// SelectEra locks the visible domain to the era's range and jumps to its
// start. Selecting the locked era again clears the lock. Unknown ids are
// ignored; it reports whether anything changed.
func (c *Controller) SelectEra(id model.EraID) bool {
	if c.era != nil && c.era.ID == id {
		c.ClearEra()
		return true
	}
	snap, ok := c.ViewSnapshot()
	if !ok {
		return false
	}
	rec, ok := snap.Eras.Lookup(id)
	if !ok {
		return false
	}
	c.cancelReplay()
	end := rec.EndTick
	if end < rec.StartTick {
		end = rec.StartTick
	}
	c.era = &EraLock{ID: rec.ID, Range: history.TickRange{Start: rec.StartTick, End: end}}
	c.current = rec.StartTick
	c.mode = ModeEraLocked
	return true
}

// ClearEra removes the lock and restores Live.
func (c *Controller) ClearEra() {
	c.cancelReplay()
	c.era = nil
	c.mode = ModeLive
	c.current = c.store.Latest()
}

func (c *Controller) Era() (EraLock, bool) {
	if c.era == nil {
		return EraLock{}, false
	}
	return *c.era, true
}

func (c *Controller) HoverEra(id model.EraID) { c.hovered = id }

// ActiveEraID is the hovered era, else the locked one.
func (c *Controller) ActiveEraID() model.EraID {
	if c.hovered != "" {
		return c.hovered
	}
	if c.era != nil {
		return c.era.ID
	}
	return ""
}

// Sync keeps a Live cursor on the newest visible tick after ingest.
func (c *Controller) Sync() {
	if c.mode != ModeLive {
		return
	}
	if b := c.bounded(); len(b) > 0 {
		c.current = b[len(b)-1]
	}
}

// ValidateEra resets a lock whose era is no longer present in snap and
// returns to Live. It reports whether a reset happened.
func (c *Controller) ValidateEra(snap *model.Snapshot) bool {
	if snap == nil {
		return false
	}
	if c.hovered != "" {
		if _, ok := snap.Eras.Lookup(c.hovered); !ok {
			c.hovered = ""
		}
	}
	if c.era == nil {
		return false
	}
	if _, ok := snap.Eras.Lookup(c.era.ID); ok {
		return false
	}
	c.GoLive()
	return true
}

type Status struct {
	Mode       Mode               `json:"mode"`
	Tick       uint64             `json:"tick"`
	Cursor     uint64             `json:"cursor"`
	First      uint64             `json:"first"`
	Last       uint64             `json:"last"`
	Latest     uint64             `json:"latest"`
	HistoryLen int                `json:"history_len"`
	Live       bool               `json:"live"`
	Paused     bool               `json:"paused"`
	Replaying  bool               `json:"replaying"`
	EraLocked  bool               `json:"era_locked"`
	EraID      model.EraID        `json:"era_id,omitempty"`
	EraRange   *history.TickRange `json:"era_range,omitempty"`
	HoveredEra model.EraID        `json:"hovered_era,omitempty"`
}

func (c *Controller) Status() Status {
	st := Status{
		Mode:       c.mode,
		Tick:       c.ViewTick(),
		Cursor:     c.current,
		Latest:     c.store.Latest(),
		HistoryLen: c.store.Len(),
		Live:       c.mode == ModeLive,
		Paused:     c.mode == ModePaused,
		Replaying:  c.Replaying(),
		HoveredEra: c.hovered,
	}
	st.First, st.Last, _ = history.Bounds(c.bounded())
	if c.era != nil {
		r := c.era.Range
		st.EraLocked = true
		st.EraID = c.era.ID
		st.EraRange = &r
	}
	return st
}
