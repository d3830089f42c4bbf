// Package frames serves engine frames to presentation clients.
package frames

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"civscope.ai/internal/explorer/engine"
	"civscope.ai/internal/explorer/model"
	"civscope.ai/internal/explorer/playback"
	"civscope.ai/internal/frameproto"
)

const (
	defaultQueue = 4
	maxQueue     = 64
)

type Server struct {
	eng    *engine.Engine
	log    *log.Logger
	params frameproto.Params

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(e *engine.Engine, params frameproto.Params, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		eng:    e,
		log:    logger,
		params: params,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var (
			st    playback.Status
			stats engine.Stats
		)
		if err := s.eng.Call(ctx, func() {
			st = s.eng.Playback().Status()
			stats = s.eng.Stats()
		}); err != nil {
			http.Error(rw, "engine unavailable", http.StatusServiceUnavailable)
			return
		}

		kinds := make([]string, 0, len(model.Kinds))
		for _, k := range model.Kinds {
			kinds = append(kinds, string(k))
		}
		resp := frameproto.BootstrapResponse{
			ProtocolVersion: frameproto.Version,
			Params:          s.params,
			Status:          st,
			Stats:           stats,
			LinkKinds:       kinds,
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("F%d", s.nextID.Add(1))
		var withSnapshot atomic.Bool
		withSnapshot.Store(sub.IncludeSnapshot)

		feed, unsubscribe := s.eng.Subscribe(queueSize(sub.MaxQueue))
		defer unsubscribe()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			var (
				sentTick uint64
				sentAny  bool
			)
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case f, ok := <-feed.C:
					if !ok {
						_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "engine stopped"), time.Now().Add(time.Second))
						writeErr <- nil
						return
					}
					if err := writeJSON(conn, frameproto.FrameMsg{
						Type:            frameproto.TypeFrame,
						ProtocolVersion: frameproto.Version,
						Frame:           f,
					}); err != nil {
						writeErr <- err
						return
					}
					if !withSnapshot.Load() || f.Snapshot == nil {
						continue
					}
					if sentAny && sentTick == f.Tick {
						continue
					}
					if err := writeJSON(conn, frameproto.SnapshotMsg{
						Type:            frameproto.TypeSnapshot,
						ProtocolVersion: frameproto.Version,
						Tick:            f.Tick,
						Snapshot:        f.Snapshot,
					}); err != nil {
						writeErr <- err
						return
					}
					sentTick, sentAny = f.Tick, true
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if upd, ok := decodeSubscribe(msg); ok {
				withSnapshot.Store(upd.IncludeSnapshot)
			}
		}
		s.log.Printf("frames: %s closed", sid)

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func decodeSubscribe(msg []byte) (frameproto.SubscribeMsg, bool) {
	var sub frameproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != frameproto.TypeSubscribe || sub.ProtocolVersion != frameproto.Version {
		return sub, false
	}
	return sub, true
}

func queueSize(n int) int {
	if n <= 0 {
		return defaultQueue
	}
	if n > maxQueue {
		return maxQueue
	}
	return n
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
