package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/OCAP2/navscore/pkg/core"
	"github.com/OCAP2/navscore/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams run results over WebSocket to a live scoreboard.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config
	sent atomic.Uint64 // transitions sent in the current run
}

// New creates a new WebSocket storage backend. A nil logger uses slog.Default.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("backend", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.open(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// StartRun announces the run and waits for server ack.
func (b *Backend) StartRun(run *core.Run) error {
	data, err := marshalEnvelope(streaming.TypeStartRun, streaming.StartRunPayload{Run: run})
	if err != nil {
		return err
	}

	b.conn.setResume(data)
	b.sent.Store(0)

	return b.conn.request(data, streaming.TypeStartRun, ackTimeout)
}

// RecordTransition sends a gate transition (fire-and-forget).
func (b *Backend) RecordTransition(t *core.GateTransition) error {
	data, err := marshalEnvelope(streaming.TypeTransition, t)
	if err != nil {
		return err
	}
	b.conn.send(data)
	b.sent.Add(1)
	return nil
}

// EndRun sends the run summary and waits for server ack.
func (b *Backend) EndRun(summary *core.RunSummary) error {
	data, err := marshalEnvelope(streaming.TypeEndRun, streaming.EndRunPayload{Summary: summary})
	if err != nil {
		return err
	}
	err = b.conn.request(data, streaming.TypeEndRun, ackTimeout)
	b.conn.setResume(nil)
	return err
}

// Sent returns the number of transitions streamed in the current run.
func (b *Backend) Sent() uint64 {
	return b.sent.Load()
}
