// Package logging is the leveled logger of the translation engine, backed
// by go-logger in the CLI.
package logging

import (
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

// Logger is the method set of go-logger the engine logs through.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	WithFields(fields map[string]any) Logger
}

// Config comes from --log-level and --log-format.
type Config struct {
	Level  string
	Format string
}

var formats = map[string]func() glog.Option{
	"":        glog.WithLoggerTypeConsole,
	"console": glog.WithLoggerTypeConsole,
	"json":    glog.WithLoggerTypeJSON,
	"pretty":  glog.WithLoggerTypePretty,
}

// New builds a go-logger backed Logger. An unknown level keeps the
// go-logger default.
func New(cfg Config) (Logger, error) {
	format, ok := formats[strings.ToLower(strings.TrimSpace(cfg.Format))]
	if !ok {
		return nil, fmt.Errorf("logging: unsupported format %q", cfg.Format)
	}
	options := []glog.Option{format()}
	if level := normalizeLevel(cfg.Level); level != "" {
		options = append(options, glog.WithLevel(level))
	}
	return &adapter{glog.NewLogger(options...)}, nil
}

type adapter struct {
	inner glog.Logger
}

func (l *adapter) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l *adapter) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l *adapter) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l *adapter) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

func (l *adapter) WithFields(fields map[string]any) Logger {
	with, ok := l.inner.(glog.FieldsLogger)
	if !ok || len(fields) == 0 {
		return l
	}
	return &adapter{with.WithFields(fields)}
}

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return glog.Trace
	case "debug":
		return glog.Debug
	case "info":
		return glog.Info
	case "warn", "warning":
		return glog.Warn
	case "error":
		return glog.Error
	}
	return ""
}

// NoOp returns a Logger that discards everything.
func NoOp() Logger { return noop{} }

type noop struct{}

func (noop) Debug(string, ...any)               {}
func (noop) Info(string, ...any)                {}
func (noop) Warn(string, ...any)                {}
func (noop) Error(string, ...any)               {}
func (n noop) WithFields(map[string]any) Logger { return n }
