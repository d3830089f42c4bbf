// Package replay drives the engine headlessly over a recording on a virtual
// clock and digests every frame the replay stepper produces. Two runs over
// the same recording must yield the same digests.
package replay

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"civscope.ai/internal/explorer/engine"
	"civscope.ai/internal/explorer/focus"
	"civscope.ai/internal/explorer/layout"
	"civscope.ai/internal/explorer/model"
	"civscope.ai/internal/ingest"
	"civscope.ai/internal/persistence/record"
)

var (
	ErrEmpty      = errors.New("recording holds no snapshots")
	ErrUnknownEra = errors.New("unknown era")
)

const pollStep = time.Millisecond

type Options struct {
	Logger         *log.Logger
	ReplayInterval time.Duration
	// MaxHistory defaults to the number of recorded snapshots.
	MaxHistory int
	From       *uint64
	To         *uint64
	EraID      string
	Canvas     engine.Canvas
}

type FrameDigest struct {
	Tick   uint64 `json:"tick"`
	Nodes  int    `json:"nodes"`
	Links  int    `json:"links"`
	Digest string `json:"digest"`
}

type Result struct {
	Snapshots int           `json:"snapshots"`
	Frames    []FrameDigest `json:"frames"`
	Digest    string        `json:"digest"`
}

type virtualClock struct{ t time.Time }

func (c *virtualClock) Now() time.Time { return c.t }

// Run ingests every entry, positions the cursor and steps replay until it
// parks or passes To.
func Run(entries []record.Entry, opts Options) (Result, error) {
	if len(entries) == 0 {
		return Result{}, record.ErrNoRecording
	}
	total := 0
	for _, en := range entries {
		total += len(en.Batch.Snapshots)
	}
	maxHistory := opts.MaxHistory
	if maxHistory <= 0 {
		maxHistory = max(total, 1)
	}
	interval := opts.ReplayInterval
	if interval <= 0 {
		interval = 120 * time.Millisecond
	}

	src := ingest.NewRecordingSourceFromEntries(entries)
	clk := &virtualClock{t: time.Unix(0, 0).UTC()}
	e := engine.New(engine.Options{
		Source:         src,
		Logger:         opts.Logger,
		Clock:          clk.Now,
		MaxHistory:     maxHistory,
		PollInterval:   pollStep,
		FrameInterval:  time.Hour,
		ReplayInterval: interval,
		Canvas:         opts.Canvas,
		InlineFetch:    true,
	})
	e.Start()
	for src.Remaining() > 0 {
		clk.t = clk.t.Add(pollStep)
		e.RunDue(clk.t)
	}
	store := e.Store()
	if store.Len() == 0 {
		return Result{}, ErrEmpty
	}

	if opts.EraID != "" && !e.SelectEra(opts.EraID) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownEra, opts.EraID)
	}
	switch {
	case opts.From != nil:
		e.Scrub(*opts.From)
	case opts.EraID == "":
		e.Scrub(store.First())
	}

	res := Result{Snapshots: store.Len()}
	h := sha256.New()
	add := func(f *engine.Frame) bool {
		if opts.To != nil && f.Tick > *opts.To {
			return false
		}
		fd := FrameDigest{Tick: f.Tick, Nodes: len(f.Nodes), Links: f.LinkCount(), Digest: Digest(f)}
		res.Frames = append(res.Frames, fd)
		h.Write([]byte(fd.Digest))
		return true
	}

	if add(e.ComputeFrame()) && e.StartReplay() {
		// Each step moves at least one stored tick.
		for steps := 0; e.Playback().Replaying() && steps <= store.Len(); steps++ {
			clk.t = clk.t.Add(interval)
			e.RunDue(clk.t)
			if !add(e.ComputeFrame()) {
				e.StopReplay()
				break
			}
		}
	}
	res.Digest = hex.EncodeToString(h.Sum(nil))
	return res, nil
}

// Digest hashes the rendered content of a frame. Revision and playback
// status are left out so identical pictures hash alike.
func Digest(f *engine.Frame) string {
	view := struct {
		Tick       uint64                               `json:"tick"`
		Nodes      []engine.Node                        `json:"nodes"`
		Links      map[model.LinkKind][]layout.Polyline `json:"links"`
		Focus      *focus.Lists                         `json:"focus,omitempty"`
		Highlights []model.SettlementID                 `json:"highlights,omitempty"`
		Era        *model.EraRecord                     `json:"era,omitempty"`
	}{f.Tick, f.Nodes, f.Links, f.Focus, f.HighlightSettlementIDs, f.ActiveEra}
	b, err := json.Marshal(view)
	if err != nil {
		panic(fmt.Sprintf("replay: frame digest: %v", err))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
