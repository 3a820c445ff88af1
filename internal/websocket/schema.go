package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionState    Action = "state"
	ActionStart    Action = "start"
	ActionAnswer   Action = "answer"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionGoTo     Action = "goto"
	ActionHint     Action = "hint"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionBookmark Action = "bookmark"
	ActionComplete Action = "complete"
	ActionPing     Action = "ping"
)

// Request is a client command. Fields are read according to Action.
type Request struct {
	Action    Action          `json:"action"`
	RequestID string          `json:"request_id,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"` // answer
	Index     *int            `json:"index,omitempty"`  // goto, bookmark
	Level     int             `json:"level,omitempty"`  // hint
}

// ─── Events (Server → Client) ───────────────────────────────────────

// Engine events are forwarded under their own names ("answer:submitted",
// "timerUpdate", ...). The names below are transport-level.
const (
	EventState = "session:state"
	EventAck   = "ack"
	EventError = "error"
	EventPong  = "pong"
)

// Envelope is every server message.
type Envelope struct {
	Event     string `json:"event"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// ErrorData is the payload of an error envelope.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
