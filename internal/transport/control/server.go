// Package control accepts user intents over a websocket and applies them on
// the engine loop.
package control

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"civscope.ai/internal/explorer/engine"
	"civscope.ai/internal/explorer/playback"
	"civscope.ai/internal/frameproto"
	"civscope.ai/internal/metrics"
	"civscope.ai/internal/transport"
)

var callTimeout = 2 * time.Second

type Server struct {
	eng         *engine.Engine
	log         *log.Logger
	allowRemote bool

	upgrader websocket.Upgrader
}

func NewServer(e *engine.Engine, allowRemote bool, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		eng:         e,
		log:         logger,
		allowRemote: allowRemote,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !transport.Allowed(r, s.allowRemote) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			ack := s.handle(msg)
			metrics.Intents.WithLabelValues(ack.action, codeLabel(ack.Code)).Inc()
			if err := writeJSON(conn, ack.AckMsg); err != nil {
				break
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	}
}

type result struct {
	frameproto.AckMsg
	action string
}

// handle never closes the stream; malformed input is answered with an ACK.
func (s *Server) handle(msg []byte) result {
	base, err := frameproto.DecodeBase(msg)
	if err != nil || base.Type != frameproto.TypeIntent {
		return result{frameproto.NewFail("", frameproto.ErrProtoBadRequest, "expected INTENT"), "invalid"}
	}
	var in frameproto.IntentMsg
	if err := json.Unmarshal(msg, &in); err != nil {
		return result{frameproto.NewFail("", frameproto.ErrProtoBadRequest, "bad intent"), "invalid"}
	}
	if in.ProtocolVersion != frameproto.Version {
		return result{frameproto.NewFail(in.ID, frameproto.ErrProtoBadRequest, "bad protocol_version"), "invalid"}
	}
	apply, ie := bind(s.eng, in)
	if ie != nil {
		label := in.Action
		if ie.code == frameproto.ErrUnknownAction {
			label = "unknown"
		}
		return result{frameproto.NewFail(in.ID, ie.code, ie.msg), label}
	}

	// The timeout covers queueing only; a queued intent is always acked with
	// its real outcome.
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	var (
		out    string
		st     playback.Status
		runErr error
	)
	if err := s.eng.Call(ctx, func() {
		out, runErr = apply()
		st = s.eng.Playback().Status()
	}); err != nil {
		s.log.Printf("control: %s: %v", in.Action, err)
		return result{frameproto.NewFail(in.ID, frameproto.ErrEngineBusy, err.Error()), in.Action}
	}
	if runErr != nil {
		ack := frameproto.NewFail(in.ID, frameproto.ErrBadArgument, runErr.Error())
		ack.Status = &st
		return result{ack, in.Action}
	}
	ack := frameproto.NewAck(in.ID)
	ack.Result = out
	ack.Status = &st
	return result{ack, in.Action}
}

func codeLabel(code string) string {
	if code == "" {
		return "ok"
	}
	return code
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
