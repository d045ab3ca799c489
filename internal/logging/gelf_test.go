package logging

import (
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGELF struct {
	mu   sync.Mutex
	msgs []gelf.Message
	err  error
}

func (f *fakeGELF) WriteMessage(m *gelf.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, *m)
	return nil
}

func (f *fakeGELF) all() []gelf.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gelf.Message(nil), f.msgs...)
}

func TestGELFHandler_Levels(t *testing.T) {
	w := &fakeGELF{}
	logger := slog.New(NewGELFHandler(w, slog.LevelDebug))

	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	msgs := w.all()
	require.Len(t, msgs, 4)
	assert.Equal(t, int32(gelfDebug), msgs[0].Level)
	assert.Equal(t, int32(gelfInfo), msgs[1].Level)
	assert.Equal(t, int32(gelfWarn), msgs[2].Level)
	assert.Equal(t, int32(gelfError), msgs[3].Level)
	assert.Equal(t, "1.1", msgs[0].Version)
	assert.NotEmpty(t, msgs[0].Host)
	assert.Positive(t, msgs[0].TimeUnix)
}

func TestGELFHandler_FiltersLevel(t *testing.T) {
	w := &fakeGELF{}
	logger := slog.New(NewGELFHandler(w, slog.LevelWarn))

	logger.Info("dropped")
	logger.Warn("kept")

	msgs := w.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "kept", msgs[0].Short)
}

func TestGELFHandler_Attributes(t *testing.T) {
	w := &fakeGELF{}
	logger := slog.New(NewGELFHandler(w, slog.LevelInfo)).
		With("service", "navscore").
		WithGroup("gate").
		With("name", "start")

	logger.Info("New gate crossed!", "index", 0, "width", 9.5, "terminal", true)

	msgs := w.all()
	require.Len(t, msgs, 1)
	extra := msgs[0].Extra
	assert.Equal(t, "navscore", extra["_service"])
	assert.Equal(t, "start", extra["_gate.name"])
	assert.Equal(t, int64(0), extra["_gate.index"])
	assert.Equal(t, 9.5, extra["_gate.width"])
	assert.Equal(t, true, extra["_gate.terminal"])
}

func TestGELFHandler_WriteError(t *testing.T) {
	w := &fakeGELF{err: errors.New("network down")}
	h := NewGELFHandler(w, slog.LevelInfo)

	multi := NewMultiHandler(h)
	logger := slog.New(multi)
	// must not panic
	logger.Info("lost")
	assert.Empty(t, w.all())
}

func TestGELFLevel(t *testing.T) {
	assert.Equal(t, int32(gelfDebug), gelfLevel(slog.LevelDebug-4))
	assert.Equal(t, int32(gelfError), gelfLevel(slog.LevelError+4))
}
