package control

import (
	"errors"
	"fmt"

	"civscope.ai/internal/explorer/engine"
	"civscope.ai/internal/frameproto"
)

type intentError struct {
	code string
	msg  string
}

func (e *intentError) Error() string { return e.code + ": " + e.msg }

func badArgument(format string, args ...any) *intentError {
	return &intentError{code: frameproto.ErrBadArgument, msg: fmt.Sprintf(format, args...)}
}

var errUnknownEra = errors.New("unknown era")

// bind checks the intent arguments off the loop and returns the call to run
// on it. The call returns a short result string.
func bind(e *engine.Engine, in frameproto.IntentMsg) (func() (string, error), *intentError) {
	done := func(fn func()) func() (string, error) {
		return func() (string, error) {
			fn()
			return "", nil
		}
	}
	switch in.Action {
	case frameproto.ActionSelectEntity:
		return done(func() { e.SelectEntity(in.EntityID) }), nil
	case frameproto.ActionSelectAt:
		if in.Pointer == nil {
			return nil, badArgument("pointer required")
		}
		p := *in.Pointer
		return func() (string, error) { return e.SelectAt(p), nil }, nil
	case frameproto.ActionSetPointer:
		return done(func() { e.SetPointer(in.Pointer) }), nil
	case frameproto.ActionSetViewport:
		return func() (string, error) {
			if err := e.SetCanvas(in.Width, in.Height, in.Scale); err != nil {
				return "", err
			}
			return "", nil
		}, nil
	case frameproto.ActionGoLive:
		return done(e.GoLive), nil
	case frameproto.ActionPause:
		return done(e.Pause), nil
	case frameproto.ActionResume:
		return done(e.Resume), nil
	case frameproto.ActionTogglePause:
		return done(e.TogglePause), nil
	case frameproto.ActionScrub:
		if in.Tick == nil {
			return nil, badArgument("tick required")
		}
		tick := *in.Tick
		return done(func() { e.Scrub(tick) }), nil
	case frameproto.ActionStartReplay:
		return func() (string, error) {
			if e.StartReplay() {
				return "replaying", nil
			}
			return "parked", nil
		}, nil
	case frameproto.ActionStopReplay:
		return done(e.StopReplay), nil
	case frameproto.ActionToggleReplay:
		return done(e.ToggleReplay), nil
	case frameproto.ActionSelectEra:
		if in.EraID == "" {
			return nil, badArgument("era_id required")
		}
		return func() (string, error) {
			if !e.SelectEra(in.EraID) {
				return "", errUnknownEra
			}
			if _, locked := e.Playback().Era(); locked {
				return "locked", nil
			}
			return "cleared", nil
		}, nil
	case frameproto.ActionClearEra:
		return done(e.ClearEra), nil
	case frameproto.ActionHoverEra:
		return done(func() { e.HoverEra(in.EraID) }), nil
	case frameproto.ActionSetLinkMode:
		return func() (string, error) { return e.SetLinkModeFilter(in.LinkMode), nil }, nil
	default:
		return nil, &intentError{code: frameproto.ErrUnknownAction, msg: fmt.Sprintf("unknown action %q", in.Action)}
	}
}
