// Package ingest reads command lines and routes them through a dispatcher.
//
// One command per line:
//
//	:COMMAND:|arg|arg
//
// Empty lines and lines starting with '#' are skipped. Every other line gets
// exactly one response line, a JSON array of the form ["ok", cmd], ["ok", cmd, result]
// or ["error", cmd, message].
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/OCAP2/navscore/internal/dispatcher"
)

// MaxLineSize is the longest command line accepted.
const MaxLineSize = 1 << 20

// Reader feeds command lines into a dispatcher.
type Reader struct {
	dispatcher *dispatcher.Dispatcher
	out        io.Writer
	logger     *slog.Logger
	version    string
}

// NewReader creates a Reader writing responses to out. out may be nil to discard responses.
func NewReader(d *dispatcher.Dispatcher, out io.Writer, logger *slog.Logger, version string) *Reader {
	if out == nil {
		out = io.Discard
	}
	return &Reader{dispatcher: d, out: out, logger: logger, version: version}
}

// Split breaks a command line into its command and arguments.
func Split(line string) (command string, args []string) {
	parts := strings.Split(line, "|")
	command = strings.TrimSpace(parts[0])
	for _, p := range parts[1:] {
		args = append(args, strings.TrimSpace(p))
	}
	return command, args
}

// Run reads lines from r until EOF or until ctx is done.
// It returns the number of commands handled.
func (r *Reader) Run(ctx context.Context, in io.Reader) (int, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	n := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if _, err := io.WriteString(r.out, r.Handle(line)+"\n"); err != nil {
			return n, fmt.Errorf("writing response: %w", err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("reading commands: %w", err)
	}
	return n, nil
}

// Handle dispatches a single command line and returns its response.
func (r *Reader) Handle(line string) string {
	command, args := Split(line)

	switch command {
	case ":TIMESTAMP:":
		return FormatResponse(command, fmt.Sprintf("%d", time.Now().UTC().UnixNano()), nil)
	case ":VERSION:":
		return FormatResponse(command, r.version, nil)
	}

	if !r.dispatcher.HasHandler(command) {
		r.logger.Debug("No handler registered", "command", command)
		return FormatResponse(command, nil, fmt.Errorf("no handler registered"))
	}

	result, err := r.dispatcher.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
	return FormatResponse(command, result, err)
}

// FormatResponse renders a dispatch outcome as a JSON array.
func FormatResponse(command string, result any, err error) string {
	var resp []any
	switch {
	case err != nil:
		resp = []any{"error", command, err.Error()}
	case result == nil:
		resp = []any{"ok", command}
	default:
		resp = []any{"ok", command, result}
	}

	b, mErr := json.Marshal(resp)
	if mErr != nil {
		b, _ = json.Marshal([]any{"error", command, mErr.Error()})
	}
	return string(b)
}
