package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/OCAP2/navscore/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	outboxSize   = 4096
	ackBuffer    = 16
	maxRedial    = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
	ackTimeout   = 10 * time.Second
	dialDeadline = 5 * time.Second
)

var errClosed = errors.New("stream closed")

// connection owns one scoreboard socket at a time. A supervisor goroutine
// pumps the outbox into it and redials when it breaks.
type connection struct {
	dialer *ws.Dialer
	target string
	logger *slog.Logger

	outbox chan []byte
	acks   chan streaming.AckMessage
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	mu     sync.Mutex
	conn   *ws.Conn
	resume []byte // start_run frame replayed on every redial
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		dialer: &ws.Dialer{HandshakeTimeout: dialDeadline},
		logger: logger,
		outbox: make(chan []byte, outboxSize),
		acks:   make(chan streaming.AckMessage, ackBuffer),
		done:   make(chan struct{}),
	}
}

// streamURL appends the shared secret as a query parameter.
func streamURL(raw, secret string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", secret)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// open dials once and hands the socket to the supervisor.
func (c *connection) open(raw, secret string) error {
	target, err := streamURL(raw, secret)
	if err != nil {
		return err
	}
	c.target = target

	conn, _, err := c.dialer.Dial(c.target, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	c.setConn(conn)

	c.wg.Add(1)
	go c.supervise(conn)
	return nil
}

func (c *connection) setConn(conn *ws.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *connection) setResume(frame []byte) {
	c.mu.Lock()
	c.resume = frame
	c.mu.Unlock()
}

func (c *connection) supervise(conn *ws.Conn) {
	defer c.wg.Done()
	for conn != nil {
		readErr := make(chan error, 1)
		go func(conn *ws.Conn) { readErr <- c.readAcks(conn) }(conn)

		err := c.pump(conn, readErr)
		if err == nil {
			return
		}
		c.logger.Warn("Scoreboard stream lost", "error", err)
		c.setConn(nil)
		_ = conn.Close()
		conn = c.redial()
	}
}

// pump writes queued frames until the socket fails or the connection closes.
func (c *connection) pump(conn *ws.Conn, readErr <-chan error) error {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-c.done:
			return nil
		case err := <-readErr:
			return err
		case frame := <-c.outbox:
			if err := write(conn, frame); err != nil {
				return err
			}
		case <-ping.C:
			if err := conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func write(conn *ws.Conn, frame []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(ws.TextMessage, frame); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// readAcks routes server acks to waiting requests. Other frames are ignored.
func (c *connection) readAcks(conn *ws.Conn) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(msg, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("Ignoring scoreboard frame", "raw", string(msg))
			continue
		}
		select {
		case c.acks <- ack:
		default:
			c.logger.Debug("Ack buffer full, dropping", "for", ack.For)
		}
	}
}

// redial retries with exponential backoff and replays the resume frame so
// the server keeps attributing transitions to the same run. It returns nil
// on shutdown or when every attempt failed.
func (c *connection) redial() *ws.Conn {
	backoff := time.Second
	for attempt := 1; attempt <= maxRedial; attempt++ {
		select {
		case <-c.done:
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)

		conn, _, err := c.dialer.Dial(c.target, nil)
		if err != nil {
			c.logger.Warn("Redial failed", "attempt", attempt, "error", err)
			continue
		}

		c.mu.Lock()
		resume := c.resume
		c.mu.Unlock()
		if resume != nil {
			if err := write(conn, resume); err != nil {
				c.logger.Warn("Replaying start_run failed", "attempt", attempt, "error", err)
				_ = conn.Close()
				continue
			}
		}

		select {
		case <-c.done:
			_ = conn.Close()
			return nil
		default:
		}
		c.setConn(conn)
		c.logger.Info("Scoreboard stream reconnected", "attempt", attempt)
		return conn
	}

	c.logger.Error("Giving up on scoreboard stream", "attempts", maxRedial)
	return nil
}

// send queues a frame without blocking. Frames are dropped when the outbox is full.
func (c *connection) send(frame []byte) {
	select {
	case c.outbox <- frame:
	default:
		c.logger.Warn("Scoreboard outbox full, dropping frame")
	}
}

// request queues a frame and waits for the server to ack its type.
func (c *connection) request(frame []byte, ackFor string, timeout time.Duration) error {
	c.send(frame)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case ack := <-c.acks:
			if ack.For == ackFor {
				return nil
			}
		case <-deadline.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("waiting for ack of %q: %w", ackFor, errClosed)
		}
	}
}

// close stops the supervisor and sends a normal close frame.
func (c *connection) close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.wg.Wait()

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()
		if conn == nil {
			return
		}
		_ = conn.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = conn.Close()
	})
	return err
}
