// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Config controls logger initialization.
type Config struct {
	Format    string // "json", "console", or "auto"
	Level     string // "trace", "debug", "info", "warn", "error", "disabled"
	Component string // optional component name
}

var (
	mu         sync.Mutex
	baseWriter io.Writer = os.Stderr
	stderr     io.Writer = os.Stderr

	isTerminalFn = term.IsTerminal
)

// Init configures zerolog globals and replaces the global logger.
func Init(cfg Config) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	baseWriter = selectWriter(cfg.Format)

	ctx := zerolog.New(baseWriter).With().Timestamp()
	if component := strings.TrimSpace(cfg.Component); component != "" {
		ctx = ctx.Str("component", component)
	}

	log.Logger = ctx.Logger()
	return log.Logger
}

// ParseLevel maps a level name to a zerolog level. Unknown names fall back
// to info with a note on stderr.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		_, _ = fmt.Fprintf(stderr, "logging: invalid level %q; using %q\n", level, "info")
		return zerolog.InfoLevel
	}
}

// ValidateLevel reports whether level names a known level.
func ValidateLevel(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info", "trace", "debug", "warn", "warning", "error", "disabled", "off":
		return nil
	default:
		return fmt.Errorf("invalid log level: %s (valid levels: trace, debug, info, warn, error, disabled)", level)
	}
}

// ValidateFormat reports whether format names a known log format.
func ValidateFormat(format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "auto", "console", "json":
		return nil
	default:
		return fmt.Errorf("invalid log format: %s (valid formats: auto, console, json)", format)
	}
}

func selectWriter(format string) io.Writer {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console":
		return newConsoleWriter(stderr)
	case "json":
		return stderr
	case "auto", "":
		if isTerminal(stderr) {
			return newConsoleWriter(stderr)
		}
		return stderr
	default:
		_, _ = fmt.Fprintf(stderr, "logging: invalid format %q; using %q\n", format, "json")
		return stderr
	}
}

func newConsoleWriter(out io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isTerminalFn(int(f.Fd()))
}
