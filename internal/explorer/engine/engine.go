// Package engine owns the explorer state: the snapshot history, playback,
// selection, pointer and viewport. Everything runs on one loop goroutine
// driven by a scheduler; other goroutines reach the state through Submit
// and Call.
package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"civscope.ai/internal/explorer/history"
	"civscope.ai/internal/explorer/hover"
	"civscope.ai/internal/explorer/model"
	"civscope.ai/internal/explorer/playback"
	"civscope.ai/internal/geom"
	"civscope.ai/internal/ingest"
	"civscope.ai/internal/metrics"
	"civscope.ai/internal/scheduler"
	"civscope.ai/internal/stateproto"
)

const (
	TaskPoll  = "poll"
	TaskFrame = "frame"

	DefaultPollInterval  = 250 * time.Millisecond
	DefaultFrameInterval = time.Second / 60
	DefaultCanvasWidth   = 960
	DefaultCanvasHeight  = 960

	inboxSize = 256
)

var ErrStopped = errors.New("engine stopped")

// Canvas is the presentation surface in device pixels.
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
}

type Options struct {
	Source ingest.Source
	Logger *log.Logger
	// Clock drives the scheduler; nil means time.Now.
	Clock func() time.Time

	MaxHistory     int
	PollInterval   time.Duration
	FrameInterval  time.Duration
	ReplayInterval time.Duration

	Canvas Canvas
	Hover  hover.Params

	// InlineFetch runs the poll fetch on the loop itself. Headless replay
	// and tests use it to stay deterministic.
	InlineFetch bool
}

type Engine struct {
	logger *log.Logger
	src    ingest.Source
	inline bool

	pollEvery  time.Duration
	frameEvery time.Duration

	sched *scheduler.Scheduler
	store *history.Store
	play  *playback.Controller
	inbox chan func()
	done  chan struct{}
	stop  sync.Once
	ctx   context.Context

	selected model.SettlementID
	pointer  *geom.Point
	canvas   Canvas
	hover    hover.Params
	linkMode string

	cursor     *uint64
	latestTick uint64
	inFlight   bool
	skipped    uint64
	fetchErrs  uint64
	started    bool

	revision  uint64
	published uint64
	last      atomic.Pointer[Frame]

	subsMu  sync.Mutex
	subs    map[uint64]*Subscription
	nextSub uint64
}

func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.Canvas.Width <= 0 {
		opts.Canvas.Width = DefaultCanvasWidth
	}
	if opts.Canvas.Height <= 0 {
		opts.Canvas.Height = DefaultCanvasHeight
	}
	if opts.Canvas.Scale <= 0 {
		opts.Canvas.Scale = 1
	}
	if opts.Hover == (hover.Params{}) {
		opts.Hover = hover.DefaultParams()
	}

	sched := scheduler.New(opts.Clock)
	store := history.New(opts.MaxHistory)
	e := &Engine{
		logger:     logger,
		src:        opts.Source,
		inline:     opts.InlineFetch,
		pollEvery:  opts.PollInterval,
		frameEvery: opts.FrameInterval,
		sched:      sched,
		store:      store,
		play:       playback.New(store, sched, opts.ReplayInterval),
		inbox:      make(chan func(), inboxSize),
		done:       make(chan struct{}),
		ctx:        context.Background(),
		canvas:     opts.Canvas,
		hover:      opts.Hover,
		linkMode:   model.LinkModeAll,
		revision:   1,
		subs:       map[uint64]*Subscription{},
	}
	e.play.OnChange = e.touch
	return e
}

func (e *Engine) touch() { e.revision++ }

// Start registers the poll and frame tasks and polls once immediately.
// Run calls it; headless drivers call it before stepping RunDue.
func (e *Engine) Start() {
	if e.started {
		return
	}
	e.started = true
	now := e.sched.Now()
	e.sched.Every(TaskPoll, e.pollEvery, e.poll)
	e.sched.Every(TaskFrame, e.frameEvery, e.frameTask)
	e.poll(now)
}

// RunDue runs every task due at now. Loop goroutine only.
func (e *Engine) RunDue(now time.Time) int { return e.sched.RunDue(now) }

// Next is the earliest scheduled deadline.
func (e *Engine) Next() (time.Time, bool) { return e.sched.Next() }

func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	e.Start()
	err := e.sched.Run(ctx, e.inbox)
	e.stop.Do(func() { close(e.done) })
	e.closeSubscribers()
	return err
}

// Submit queues fn for the loop without waiting. It reports false when the
// inbox is full or the engine stopped.
func (e *Engine) Submit(fn func()) bool {
	select {
	case <-e.done:
		return false
	default:
	}
	select {
	case e.inbox <- fn:
		return true
	default:
		return false
	}
}

// Call runs fn on the loop and waits for it to finish. ctx bounds only the
// wait for inbox space: once fn is queued Call returns nil after fn ran, or
// ErrStopped if the loop exited first and fn never ran.
func (e *Engine) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case e.inbox <- wrapped:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-e.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Drain runs queued inbox closures. Headless drivers use it in place of Run.
func (e *Engine) Drain() int {
	n := 0
	for {
		select {
		case fn := <-e.inbox:
			fn()
			n++
		default:
			return n
		}
	}
}

func (e *Engine) poll(time.Time) {
	if e.src == nil {
		return
	}
	if e.inFlight {
		e.skipped++
		metrics.Polls.WithLabelValues(metrics.PollSkipped).Inc()
		return
	}
	e.inFlight = true
	var since *uint64
	if e.cursor != nil {
		c := *e.cursor
		since = &c
	}
	if e.inline {
		b, err := e.fetch(e.ctx, since)
		e.finishFetch(b, err)
		return
	}
	ctx := e.ctx
	go func() {
		b, err := e.fetch(ctx, since)
		select {
		case e.inbox <- func() { e.finishFetch(b, err) }:
		case <-e.done:
		}
	}()
}

func (e *Engine) fetch(ctx context.Context, since *uint64) (stateproto.StateBatch, error) {
	timer := prometheus.NewTimer(metrics.FetchDuration)
	defer timer.ObserveDuration()
	return e.src.Fetch(ctx, since)
}

func (e *Engine) finishFetch(b stateproto.StateBatch, err error) {
	e.inFlight = false
	if err != nil {
		e.fetchErrs++
		metrics.Polls.WithLabelValues(metrics.PollError).Inc()
		e.logger.Printf("poll: %v", err)
		return
	}
	metrics.Polls.WithLabelValues(metrics.PollOK).Inc()
	e.Apply(b)
}

// Apply ingests a batch: snapshots are inserted in array order, the cursor
// moves to the greatest tick seen and a Live view follows the newest tick.
func (e *Engine) Apply(b stateproto.StateBatch) {
	snaps := ingest.NormalizeBatch(b)
	var maxTick uint64
	for i := range snaps {
		e.store.Insert(snaps[i])
		if snaps[i].Tick > maxTick {
			maxTick = snaps[i].Tick
		}
	}
	if len(snaps) > 0 {
		if e.cursor == nil || maxTick > *e.cursor {
			c := maxTick
			e.cursor = &c
		}
		if maxTick > e.latestTick {
			e.latestTick = maxTick
		}
		metrics.SnapshotsIngested.Add(float64(len(snaps)))
	} else if b.LatestTick > e.latestTick {
		e.latestTick = b.LatestTick
	} else {
		// Nothing new; keep the revision so no frame is republished.
		return
	}
	metrics.HistorySize.Set(float64(e.store.Len()))
	metrics.HistoryEvicted.Set(float64(e.store.Evicted()))
	e.play.Sync()
	e.touch()
}

func (e *Engine) frameTask(time.Time) {
	if snap, ok := e.play.ViewSnapshot(); ok && e.play.ValidateEra(snap) {
		e.touch()
	}
	if e.revision == e.published {
		return
	}
	f := e.ComputeFrame()
	e.published = f.Revision
	e.last.Store(f)
	e.publish(f)
}

// LastFrame is safe to call from any goroutine.
func (e *Engine) LastFrame() *Frame { return e.last.Load() }

type Stats struct {
	HistoryLen  int     `json:"history_len"`
	HistoryCap  int     `json:"history_cap"`
	Evicted     uint64  `json:"evicted"`
	Cursor      *uint64 `json:"cursor,omitempty"`
	LatestTick  uint64  `json:"latest_tick"`
	InFlight    bool    `json:"in_flight"`
	Skipped     uint64  `json:"skipped_polls"`
	FetchErrors uint64  `json:"fetch_errors"`
	Revision    uint64  `json:"revision"`
	Subscribers int     `json:"subscribers"`
}

// Stats reads loop state; call it on the loop (via Call when remote).
func (e *Engine) Stats() Stats {
	st := Stats{
		HistoryLen:  e.store.Len(),
		HistoryCap:  e.store.Cap(),
		Evicted:     e.store.Evicted(),
		LatestTick:  e.latestTick,
		InFlight:    e.inFlight,
		Skipped:     e.skipped,
		FetchErrors: e.fetchErrs,
		Revision:    e.revision,
	}
	if e.cursor != nil {
		c := *e.cursor
		st.Cursor = &c
	}
	e.subsMu.Lock()
	st.Subscribers = len(e.subs)
	e.subsMu.Unlock()
	return st
}

func (e *Engine) Store() *history.Store          { return e.store }
func (e *Engine) Playback() *playback.Controller { return e.play }
