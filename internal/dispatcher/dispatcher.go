package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/navscore/internal/dispatcher"

// Event represents an incoming command line.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
	lane       string
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Lane makes the handler async on a named queue shared with every other handler
// registered on the same lane. Events on one lane are handled one at a time, in
// the order they were dispatched. The first registration sets the queue size.
func Lane(name string, size int) Option {
	return func(c *config) {
		c.lane = name
		c.bufferSize = size
	}
}

type queued struct {
	handler HandlerFunc
	event   Event
}

type lane struct {
	name   string
	buffer chan queued
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	// Track lanes for gauge callback
	mu    sync.RWMutex
	lanes map[string]*lane

	pending sync.WaitGroup
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		lanes:    make(map[string]*lane),
		logger:   logger,
	}

	m := otel.Meter(instrumentationName)

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			for name, depth := range d.QueueDepths() {
				o.ObserveInt64(d.queueSize, int64(depth),
					metric.WithAttributes(attribute.String("lane", name)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.bufferSize > 0 {
		name := cfg.lane
		if name == "" {
			name = command
		}
		handler = d.withBuffer(command, d.lane(name, cfg.bufferSize), cfg.blocking, handler)
	}

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	d.handlers[command] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Drain blocks until every queued event has been handled.
// It must not be called concurrently with Dispatch.
func (d *Dispatcher) Drain() {
	d.pending.Wait()
}

// QueueDepths returns the number of waiting events per lane.
func (d *Dispatcher) QueueDepths() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int, len(d.lanes))
	for name, l := range d.lanes {
		out[name] = len(l.buffer)
	}
	return out
}

// lane returns the named lane, starting its worker on first use.
func (d *Dispatcher) lane(name string, size int) *lane {
	d.mu.Lock()
	defer d.mu.Unlock()

	if l, ok := d.lanes[name]; ok {
		return l
	}

	l := &lane{name: name, buffer: make(chan queued, size)}
	d.lanes[name] = l

	go func() {
		for q := range l.buffer {
			if _, err := q.handler(q.event); err != nil {
				d.logger.Error("queued event failed", "command", q.event.Command, "lane", name, "error", err)
			}
			d.processed.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("command", q.event.Command), attribute.String("lane", name)))
			d.pending.Done()
		}
	}()

	return l
}

func (d *Dispatcher) withBuffer(command string, l *lane, blocking bool, h HandlerFunc) HandlerFunc {
	attrs := metric.WithAttributes(attribute.String("command", command), attribute.String("lane", l.name))

	if blocking {
		return func(e Event) (any, error) {
			d.pending.Add(1)
			l.buffer <- queued{handler: h, event: e}
			return "queued", nil
		}
	}

	return func(e Event) (any, error) {
		d.pending.Add(1)
		select {
		case l.buffer <- queued{handler: h, event: e}:
			return "queued", nil
		default:
			d.pending.Done()
			d.dropped.Add(context.Background(), 1, attrs)
			return nil, fmt.Errorf("queue full: %s", command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
