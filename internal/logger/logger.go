// Package logger is the process-wide structured logger used by the cfmgr
// server, the managers and the CLI. It wraps log/slog with a colored text
// format for terminals and a JSON format for log shippers; level and
// format can change at runtime without recreating loggers.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

var slogLevels = [...]slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel parses a case-insensitive level name. WARNING is accepted as
// an alias for WARN.
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(s)
	if name == "WARNING" {
		return LevelWarn, nil
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Config matches the logging section of the cfmgr config file.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

// destination is where records go and how they are rendered.
type destination struct {
	w     io.Writer
	file  *os.File // set when w was opened by Init and must be closed
	color bool
	json  bool
}

var (
	minLevel slog.LevelVar

	mu   sync.Mutex
	dest = destination{w: os.Stderr, color: colorOutput(os.Stderr)}

	current atomic.Pointer[slog.Logger]
)

func init() {
	rebuild()
}

// rebuild swaps in a logger for dest. Callers hold mu except during init.
func rebuild() {
	opts := &slog.HandlerOptions{Level: &minLevel}
	var h slog.Handler
	if dest.json {
		h = slog.NewJSONHandler(dest.w, opts)
	} else {
		h = newTextHandler(dest.w, opts, dest.color)
	}
	current.Store(slog.New(h))
}

// Init applies cfg. Empty fields keep their current value; output may be
// "stdout", "stderr" or a file opened for appending.
func Init(cfg Config) error {
	var lvl Level
	if cfg.Level != "" {
		l, err := ParseLevel(cfg.Level)
		if err != nil {
			return err
		}
		lvl = l
	}

	if cfg.Output != "" {
		if err := setOutput(cfg.Output); err != nil {
			return err
		}
	}
	if cfg.Level != "" {
		minLevel.Set(slogLevels[lvl])
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	return nil
}

// colorOutput reports whether text written to f should be colored.
// Setting NO_COLOR turns color off.
func colorOutput(f *os.File) bool {
	return os.Getenv("NO_COLOR") == "" && isTerminal(f.Fd())
}

func setOutput(target string) error {
	next := destination{}
	switch strings.ToLower(target) {
	case "stdout":
		next.w, next.color = os.Stdout, colorOutput(os.Stdout)
	case "stderr":
		next.w, next.color = os.Stderr, colorOutput(os.Stderr)
	default:
		f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", target, err)
		}
		next.w, next.file = f, f
	}

	mu.Lock()
	prev := dest.file
	next.json = dest.json
	dest = next
	rebuild()
	mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// InitWithWriter sends logs to w. Used by tests and by commands that
// capture server output.
func InitWithWriter(w io.Writer, level, format string, color bool) {
	mu.Lock()
	dest.w, dest.file, dest.color = w, nil, color
	rebuild()
	mu.Unlock()

	SetLevel(level)
	SetFormat(format)
}

// SetLevel changes the minimum level. Unknown names are ignored so a bad
// hot-reloaded value cannot silence logging.
func SetLevel(level string) {
	if l, err := ParseLevel(level); err == nil {
		minLevel.Set(slogLevels[l])
	}
}

// GetLevel returns the minimum level.
func GetLevel() Level {
	for i, sl := range slogLevels {
		if minLevel.Level() <= sl {
			return Level(i)
		}
	}
	return LevelError
}

// SetFormat switches between "text" and "json". Other values are ignored.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	mu.Lock()
	if json := format == "json"; json != dest.json {
		dest.json = json
		rebuild()
	}
	mu.Unlock()
}

// With returns a logger that adds args to every record.
func With(args ...any) *slog.Logger {
	return current.Load().With(args...)
}

func Debug(msg string, args ...any) { current.Load().Debug(msg, args...) }
func Info(msg string, args ...any)  { current.Load().Info(msg, args...) }
func Warn(msg string, args ...any)  { current.Load().Warn(msg, args...) }
func Error(msg string, args ...any) { current.Load().Error(msg, args...) }

// The *Ctx variants prepend the request fields of the LogContext in ctx.

func DebugCtx(ctx context.Context, msg string, args ...any) {
	logCtx(ctx, slog.LevelDebug, msg, args)
}

func InfoCtx(ctx context.Context, msg string, args ...any) {
	logCtx(ctx, slog.LevelInfo, msg, args)
}

func WarnCtx(ctx context.Context, msg string, args ...any) {
	logCtx(ctx, slog.LevelWarn, msg, args)
}

func ErrorCtx(ctx context.Context, msg string, args ...any) {
	logCtx(ctx, slog.LevelError, msg, args)
}

func logCtx(ctx context.Context, level slog.Level, msg string, args []any) {
	if level < minLevel.Level() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	current.Load().Log(ctx, level, msg, FromContext(ctx).fields(args)...)
}
