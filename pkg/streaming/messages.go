// Package streaming defines the envelope protocol used to stream run results
// to a live scoreboard over WebSocket.
package streaming

import (
	"encoding/json"

	"github.com/OCAP2/navscore/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartRun   = "start_run"
	TypeEndRun     = "end_run"
	TypeTransition = "gate_transition"
	TypeAck        = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartRunPayload announces a run and its gate layout.
type StartRunPayload struct {
	Run *core.Run `json:"run"`
}

// EndRunPayload carries the final outcome of a run.
type EndRunPayload struct {
	Summary *core.RunSummary `json:"summary"`
}
