// Package frameproto is the wire format between the engine service and
// presentation clients.
package frameproto

import (
	"encoding/json"

	"civscope.ai/internal/explorer/engine"
	"civscope.ai/internal/explorer/model"
	"civscope.ai/internal/explorer/playback"
	"civscope.ai/internal/geom"
)

const Version = "1.0"

// Message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeFrame     = "FRAME"
	TypeSnapshot  = "SNAPSHOT"
	TypeIntent    = "INTENT"
	TypeAck       = "ACK"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Client -> Server. First message on the frames WS connection; it can be
// re-sent to change settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	IncludeSnapshot bool   `json:"include_snapshot,omitempty"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// Server -> Client. Sent for every published frame.
type FrameMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Frame           *engine.Frame `json:"frame"`
}

// Server -> Client. Sent when the view tick changes and the subscriber asked
// for snapshots.
type SnapshotMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Tick            uint64          `json:"tick"`
	Snapshot        *model.Snapshot `json:"snapshot"`
}

// Intent actions accepted on the control connection.
const (
	ActionSelectEntity = "select_entity"
	ActionSelectAt     = "select_at"
	ActionSetPointer   = "set_pointer"
	ActionSetViewport  = "set_viewport"
	ActionGoLive       = "go_live"
	ActionPause        = "pause"
	ActionResume       = "resume"
	ActionTogglePause  = "toggle_pause"
	ActionScrub        = "scrub"
	ActionStartReplay  = "start_replay"
	ActionStopReplay   = "stop_replay"
	ActionToggleReplay = "toggle_replay"
	ActionSelectEra    = "select_era"
	ActionClearEra     = "clear_era"
	ActionHoverEra     = "hover_era"
	ActionSetLinkMode  = "set_link_mode"
)

// Client -> Server.
type IntentMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Action          string `json:"action"`

	EntityID string      `json:"entity_id,omitempty"`
	EraID    string      `json:"era_id,omitempty"`
	Tick     *uint64     `json:"tick,omitempty"`
	Pointer  *geom.Point `json:"pointer,omitempty"`
	Width    float64     `json:"width,omitempty"`
	Height   float64     `json:"height,omitempty"`
	Scale    float64     `json:"scale,omitempty"`
	LinkMode string      `json:"link_mode,omitempty"`
}

// Server -> Client. Answers one INTENT.
type AckMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Ref             string           `json:"ref"`
	OK              bool             `json:"ok"`
	Code            string           `json:"code,omitempty"`
	Message         string           `json:"message,omitempty"`
	Result          string           `json:"result,omitempty"`
	Status          *playback.Status `json:"status,omitempty"`
}

// HTTP response for GET /v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string          `json:"protocol_version"`
	Params          Params          `json:"params"`
	Status          playback.Status `json:"status"`
	Stats           engine.Stats    `json:"stats"`
	LinkKinds       []string        `json:"link_kinds"`
}

// Params echoes the engine configuration a client needs to render.
type Params struct {
	PollIntervalMS   int64         `json:"poll_interval_ms"`
	FrameHz          int           `json:"frame_hz"`
	ReplayIntervalMS int64         `json:"replay_interval_ms"`
	MaxHistory       int           `json:"max_history"`
	Canvas           engine.Canvas `json:"canvas"`
	AllowRemote      bool          `json:"allow_remote"`
}

func NewAck(ref string) AckMsg {
	return AckMsg{Type: TypeAck, ProtocolVersion: Version, Ref: ref, OK: true}
}

func NewFail(ref, code, message string) AckMsg {
	return AckMsg{Type: TypeAck, ProtocolVersion: Version, Ref: ref, Code: code, Message: message}
}
