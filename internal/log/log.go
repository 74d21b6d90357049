// Package log wires log/slog for the command line and the terminal console.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// keep is how many recent records a TUIHandler retains.
const keep = 20

// TUIHandler is a slog.Handler that also forwards records to a tea.Program.
type TUIHandler struct {
	slog.Handler
	state *tuiState
}

// tuiState is shared by handlers derived with WithAttrs and WithGroup.
type tuiState struct {
	mu   sync.Mutex
	ch   chan<- tea.Msg
	logs []slog.Record
}

// NewTUIHandler creates a new TUIHandler.
func NewTUIHandler(handler slog.Handler, ch chan<- tea.Msg) *TUIHandler {
	return &TUIHandler{
		Handler: handler,
		state:   &tuiState{ch: ch},
	}
}

// Handle records r, forwards it to the console if one is attached, and
// passes it on to the wrapped handler.
func (h *TUIHandler) Handle(ctx context.Context, r slog.Record) error {
	h.state.mu.Lock()
	h.state.logs = append(h.state.logs, r.Clone())
	if len(h.state.logs) > keep {
		h.state.logs = h.state.logs[1:]
	}
	if h.state.ch != nil {
		// Never stall the caller on a busy console.
		select {
		case h.state.ch <- LogMsg(r):
		default:
		}
	}
	h.state.mu.Unlock()

	return h.Handler.Handle(ctx, r)
}

func (h *TUIHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TUIHandler{Handler: h.Handler.WithAttrs(attrs), state: h.state}
}

func (h *TUIHandler) WithGroup(name string) slog.Handler {
	return &TUIHandler{Handler: h.Handler.WithGroup(name), state: h.state}
}

// Logs returns the stored log records, oldest first.
func (h *TUIHandler) Logs() []slog.Record {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	return append([]slog.Record(nil), h.state.logs...)
}

// LogMsg is a tea.Msg that represents a log message.
type LogMsg slog.Record

// SetOutput sets the output channel for the handler. Nil detaches it.
func (h *TUIHandler) SetOutput(ch chan<- tea.Msg) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.ch = ch
}

var defaultHandler *TUIHandler

// Init installs handler, wrapped in a TUIHandler, as the default logger.
func Init(handler slog.Handler) *slog.Logger {
	defaultHandler = NewTUIHandler(handler, nil)
	logger := slog.New(defaultHandler)
	slog.SetDefault(logger)
	return logger
}

// SetOutput sets the output channel for the default logger.
func SetOutput(ch chan<- tea.Msg) {
	if defaultHandler != nil {
		defaultHandler.SetOutput(ch)
	}
}

// Logs returns the stored log messages from the default logger.
func Logs() []slog.Record {
	if defaultHandler == nil {
		return nil
	}
	return defaultHandler.Logs()
}

// ParseLevel accepts debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
