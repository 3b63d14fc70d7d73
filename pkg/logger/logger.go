package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the minimal leveled logging interface consumed by the engine.
// Args are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type ZerologHandler struct {
	logger zerolog.Logger
}

// New returns a zerolog-backed Logger writing to w. A nil writer defaults to
// stderr.
func New(w io.Writer) *ZerologHandler {
	if w == nil {
		w = os.Stderr
	}
	return &ZerologHandler{
		logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// FromZerolog wraps an existing zerolog.Logger.
func FromZerolog(l zerolog.Logger) *ZerologHandler {
	return &ZerologHandler{logger: l}
}

func (h *ZerologHandler) Debug(msg string, args ...any) { emit(h.logger.Debug(), msg, args) }
func (h *ZerologHandler) Info(msg string, args ...any)  { emit(h.logger.Info(), msg, args) }
func (h *ZerologHandler) Warn(msg string, args ...any)  { emit(h.logger.Warn(), msg, args) }
func (h *ZerologHandler) Error(msg string, args ...any) { emit(h.logger.Error(), msg, args) }

func emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}

// Nop discards everything. Used as the default in constructors and in tests.
type Nop struct{}

func (Nop) Debug(string, ...any) {}
func (Nop) Info(string, ...any)  {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}
