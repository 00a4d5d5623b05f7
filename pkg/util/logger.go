package util

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func colorize(level slog.Level, msg string) string {
	switch level {
	case slog.LevelError:
		return colorRed + msg + colorReset
	case slog.LevelWarn:
		return colorYellow + msg + colorReset
	case slog.LevelInfo:
		return colorGreen + msg + colorReset
	case slog.LevelDebug:
		return colorCyan + msg + colorReset
	default:
		return colorGray + msg + colorReset
	}
}

// Log level constants
const (
	DebugLevel = slog.LevelDebug
	InfoLevel  = slog.LevelInfo
	WarnLevel  = slog.LevelWarn
	ErrorLevel = slog.LevelError
)

// Logger is the key/value logger shared by every package of the overlay.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new logger instance. Terminal streams get the colored
// console format, anything else gets JSON lines with short source locations.
func NewLogger(output io.Writer, level slog.Level) *Logger {
	if output == os.Stdout || output == os.Stderr {
		return &Logger{logger: slog.New(&consoleHandler{
			out:   output,
			mu:    &sync.Mutex{},
			level: level,
		})}
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if source, ok := a.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
					a.Value = slog.AnyValue(source)
				}
			}
			return a
		},
	})
	return &Logger{logger: slog.New(handler)}
}

// DefaultLogger logs at info level to stdout.
func DefaultLogger() *Logger {
	return NewLogger(os.Stdout, InfoLevel)
}

// NopLogger drops everything.
func NopLogger() *Logger {
	return NewLogger(io.Discard, ErrorLevel+1)
}

// consoleHandler renders one colored line per record:
// time level message key=value...
type consoleHandler struct {
	out    io.Writer
	mu     *sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	prefix string
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	levelStr := r.Level.String()
	switch r.Level {
	case slog.LevelError:
		levelStr = colorize(r.Level, "ERROR")
	case slog.LevelWarn:
		levelStr = colorize(r.Level, "WARN ")
	case slog.LevelInfo:
		levelStr = colorize(r.Level, "INFO ")
	case slog.LevelDebug:
		levelStr = colorize(r.Level, "DEBUG")
	}

	parts := []string{fmt.Sprintf("%s %s %s",
		colorize(slog.LevelInfo, r.Time.Format("15:04:05.000")),
		levelStr,
		r.Message,
	)}

	appendAttr := func(attr slog.Attr) bool {
		key := h.prefix + attr.Key
		attrStr := fmt.Sprintf("%s=%v", key, attr.Value)
		if attr.Key == "error" {
			parts = append(parts, colorize(slog.LevelError, attrStr))
		} else {
			parts = append(parts, colorize(slog.LevelDebug, attrStr))
		}
		return true
	}
	for _, attr := range h.attrs {
		appendAttr(attr)
	}
	r.Attrs(appendAttr)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.out, strings.Join(parts, " "))
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// With adds attributes to the logger
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{logger: l.logger.With(toAttrSlice(args)...)}
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.logger.Debug(msg, toAttrSlice(args)...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.logger.Info(msg, toAttrSlice(args)...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.logger.Warn(msg, toAttrSlice(args)...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.logger.Error(msg, toAttrSlice(args)...)
}

// Fatal logs at error level and exits the process.
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.logger.Error(msg, toAttrSlice(args)...)
	os.Exit(1)
}

// WithRequestID tags every record with the id of one outbound request.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With("request_id", requestID)
}

func (l *Logger) WithError(err error) *Logger {
	return l.With("error", err.Error())
}

// toAttrSlice pads odd argument lists and stringifies non-string keys.
func toAttrSlice(args []interface{}) []any {
	if len(args)%2 != 0 {
		args = append(args, "(MISSING)")
	}
	attrs := make([]any, 0, len(args))
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", args[i])
		}
		attrs = append(attrs, key, args[i+1])
	}
	return attrs
}
