package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with application-specific methods
type Logger struct {
	zerolog.Logger
}

// New creates a new Logger instance writing to stdout, or to the given
// writers when any are supplied.
func New(level string, format string, writers ...io.Writer) *Logger {
	var out io.Writer = os.Stdout
	if len(writers) > 0 {
		out = io.MultiWriter(writers...)
	}
	return newLogger(level, formatted(format, out))
}

// NewTee creates a Logger writing to console in the given format and to
// file as JSON lines.
func NewTee(level, format string, console, file io.Writer) *Logger {
	return newLogger(level, zerolog.MultiLevelWriter(formatted(format, console), file))
}

func newLogger(level string, out io.Writer) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return &Logger{Logger: logger}
}

func formatted(format string, out io.Writer) io.Writer {
	if format == "text" || format == "console" {
		// Human-readable output for interactive runs
		return zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.DateTime,
		}
	}
	return out
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// OpenFile opens (creating parent directories) a process log file for
// appending. The caller closes it.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// WithRunID returns a new logger with the dispatch run ID attached
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		Logger: l.With().Str("run_id", runID).Logger(),
	}
}

// WithComponent returns a new logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With().Str("component", component).Logger(),
	}
}

// SendAudit records a successful delivery.
func (l *Logger) SendAudit(dispatchID, to string, attachments int) {
	l.Info().
		Str("audit", "true").
		Str("dispatch_id", dispatchID).
		Str("to", to).
		Int("attachments", attachments).
		Msg("message sent")
}
