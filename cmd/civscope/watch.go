package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"civscope.ai/internal/explorer/engine"
	"civscope.ai/internal/explorer/model"
	"civscope.ai/internal/frameproto"
)

func watchCmd() *cobra.Command {
	var (
		url       string
		snapshots bool
		count     int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print frames streamed from a running service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			if err != nil {
				return fmt.Errorf("dial %s: %w", url, err)
			}
			defer conn.Close()
			go func() {
				<-ctx.Done()
				_ = conn.Close()
			}()

			if err := conn.WriteJSON(frameproto.SubscribeMsg{
				Type:            frameproto.TypeSubscribe,
				ProtocolVersion: frameproto.Version,
				IncludeSnapshot: snapshots,
			}); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			frames := 0
			for count <= 0 || frames < count {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						return nil
					}
					return err
				}
				isFrame, err := printMessage(out, msg)
				if err != nil {
					bad.Fprintf(cmd.ErrOrStderr(), "decode: %v\n", err)
					continue
				}
				if isFrame {
					frames++
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://127.0.0.1:8090/v1/frames", "frames websocket url")
	cmd.Flags().BoolVar(&snapshots, "snapshots", false, "request SNAPSHOT messages")
	cmd.Flags().IntVar(&count, "count", 0, "exit after this many frames (0 = forever)")
	return cmd
}

// printMessage writes one line per message and reports whether it was a FRAME.
func printMessage(w io.Writer, msg []byte) (bool, error) {
	base, err := frameproto.DecodeBase(msg)
	if err != nil {
		return false, err
	}
	switch base.Type {
	case frameproto.TypeFrame:
		var m frameproto.FrameMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return false, err
		}
		if m.Frame == nil {
			return false, fmt.Errorf("frame message without frame")
		}
		printFrame(w, m.Frame)
		return true, nil
	case frameproto.TypeSnapshot:
		var m struct {
			Tick     uint64          `json:"tick"`
			Snapshot *model.Snapshot `json:"snapshot"`
		}
		if err := json.Unmarshal(msg, &m); err != nil {
			return false, err
		}
		n := 0
		if m.Snapshot != nil {
			n = len(m.Snapshot.Settlements)
		}
		subtle.Fprintf(w, "SNAPSHOT tick=%d settlements=%d\n", m.Tick, n)
		return false, nil
	default:
		warn.Fprintf(w, "%s (ignored)\n", base.Type)
		return false, nil
	}
}

func printFrame(w io.Writer, f *engine.Frame) {
	mode := string(f.Status.Mode)
	if f.Status.EraLocked {
		mode += ":" + f.Status.EraID
	}
	line := fmt.Sprintf("FRAME rev=%d tick=%d/%d mode=%s nodes=%d links=%d",
		f.Revision, f.Tick, f.LatestTick, mode, len(f.Nodes), f.LinkCount())
	if f.SelectedID != "" {
		line += " selected=" + f.SelectedID
	}
	info.Fprint(w, line)
	if f.Hover != nil {
		good.Fprintf(w, " hover=%q", f.Hover.Descriptor.Title)
	}
	fmt.Fprintln(w)
}
