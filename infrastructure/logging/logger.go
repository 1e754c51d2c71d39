// Package logging wraps bolt for the host's structured logs. Logs go to
// stderr because stdout carries run results.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/felixgeelhaar/bolt/v3"

	domainconfig "github.com/felixgeelhaar/osagent/domain/config"
)

var (
	mu     sync.RWMutex
	logger *bolt.Logger
)

var levels = map[string]bolt.Level{
	"trace": bolt.TRACE,
	"debug": bolt.DEBUG,
	"info":  bolt.INFO,
	"warn":  bolt.WARN,
	"error": bolt.ERROR,
}

// Config selects the level, format and destination of a logger.
type Config struct {
	// Level is trace, debug, info, warn or error. Anything else is info.
	Level string
	// Format is json or console.
	Format string
	// Output defaults to stderr.
	Output io.Writer
}

// FromHostConfig builds a logger config from the host logging section.
func FromHostConfig(c domainconfig.LoggingConfig, out io.Writer) Config {
	return Config{Level: c.Level, Format: c.Format, Output: out}
}

func parseLevel(s string) bolt.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return bolt.INFO
}

// New builds a logger without installing it.
func New(c Config) *bolt.Logger {
	out := c.Output
	if out == nil {
		out = os.Stderr
	}
	var handler bolt.Handler = bolt.NewConsoleHandler(out)
	if c.Format == "json" {
		handler = bolt.NewJSONHandler(out)
	}
	return bolt.New(handler).SetLevel(parseLevel(c.Level))
}

// Init installs the process logger. Calling it again replaces the logger,
// so command flags can override the file configuration.
func Init(c Config) {
	l := New(c)
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Get returns the process logger, installing an info-level console logger
// on stderr if none was configured.
func Get() *bolt.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = New(Config{})
	}
	return logger
}

// LogEvent lets Fields be chained onto a bolt event.
type LogEvent struct {
	event *bolt.Event
}

// Add applies f and returns the event for chaining.
func (l *LogEvent) Add(f Field) *LogEvent {
	l.event = f(l.event)
	return l
}

// Msg emits the event.
func (l *LogEvent) Msg(msg string) {
	l.event.Msg(msg)
}

func Trace() *LogEvent { return &LogEvent{event: Get().Trace()} }
func Debug() *LogEvent { return &LogEvent{event: Get().Debug()} }
func Info() *LogEvent  { return &LogEvent{event: Get().Info()} }
func Warn() *LogEvent  { return &LogEvent{event: Get().Warn()} }
func Error() *LogEvent { return &LogEvent{event: Get().Error()} }
