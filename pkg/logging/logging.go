package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel defines the severity of the log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes LogLevel satisfy the fmt.Stringer interface.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogEntry is the structured entry handed to the TUI when channel mode is on.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Subsystem string
	Message   string
	Err       error
}

var (
	defaultLogger *slog.Logger
	filterLevel   LogLevel
	tuiLogChannel chan LogEntry
	isTuiMode     bool
)

const tuiChannelBufferSize = 2048

// InitForCLI routes log entries through a text slog handler writing to output.
// Call once at startup before any logging.
func InitForCLI(level LogLevel, output io.Writer) {
	isTuiMode = false
	filterLevel = level
	opts := &slog.HandlerOptions{Level: level.SlogLevel()}
	defaultLogger = slog.New(slog.NewTextHandler(output, opts))
	slog.SetDefault(defaultLogger)
}

// InitForTUI routes log entries into a buffered channel the TUI drains and
// renders. Entries below level are dropped at the source.
func InitForTUI(level LogLevel) <-chan LogEntry {
	isTuiMode = true
	filterLevel = level
	tuiLogChannel = make(chan LogEntry, tuiChannelBufferSize)
	// Fallback handler so stray slog calls during TUI startup still land
	// somewhere visible.
	opts := &slog.HandlerOptions{Level: level.SlogLevel()}
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, opts))
	return tuiLogChannel
}

func logInternal(level LogLevel, subsystem string, err error, messageFmt string, args ...interface{}) {
	if level < filterLevel {
		return
	}

	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}
	now := time.Now()

	if isTuiMode {
		if tuiLogChannel == nil {
			fmt.Fprintf(os.Stderr, "[LOGGING] TUI mode active but channel is nil: %s [%s] %s\n", now.Format(time.RFC3339), level, msg)
			return
		}
		entry := LogEntry{
			Timestamp: now,
			Level:     level,
			Subsystem: subsystem,
			Message:   msg,
			Err:       err,
		}
		// Drop rather than block when the TUI is not draining.
		select {
		case tuiLogChannel <- entry:
		default:
		}
		return
	}

	if defaultLogger == nil {
		fmt.Fprintf(os.Stderr, "[LOGGING] logger not initialized: %s [%s] %s\n", now.Format(time.RFC3339), level, msg)
		return
	}

	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	defaultLogger.LogAttrs(context.Background(), level.SlogLevel(), msg, attrs...)
}

// Debug logs a debug message.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info logs an informational message.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn logs a warning message.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error logs an error message.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}

// CloseTUIChannel closes the TUI log channel on application shutdown.
func CloseTUIChannel() {
	if tuiLogChannel != nil {
		close(tuiLogChannel)
		tuiLogChannel = nil
		isTuiMode = false
	}
}
