// Package logging wires zerolog into the FOTA packages.
//
// Library packages only see the small key/value Logger interface so callers
// can plug in any logging framework. The device binary uses the zerolog
// adapter returned by New.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the logging interface accepted by the FOTA packages.
//
// Example with zerolog:
//
//	zl := zerolog.New(os.Stderr)
//	r := report.New(report.UDPDialer, "172.16.15.14:5683", identity,
//	    report.WithLogger(logging.Wrap(zl)),
//	)
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

// Config selects level and destination of the device log.
type Config struct {
	Level  string `yaml:"level"`
	Debug  bool   `yaml:"debug"`
	Output string `yaml:"output"`
}

// New builds a zerolog logger from cfg.
func New(cfg Config) (zerolog.Logger, error) {
	var output io.Writer = os.Stdout
	if cfg.Output == "stderr" {
		output = os.Stderr
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	} else if cfg.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), err
		}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger(), nil
}

// Wrap adapts a zerolog logger to Logger.
func Wrap(zl zerolog.Logger) Logger {
	return &adapter{zl: zl}
}

type adapter struct {
	zl zerolog.Logger
}

func (a *adapter) Debug(msg string, kv ...interface{}) {
	a.zl.Debug().Fields(kv).Msg(msg)
}

func (a *adapter) Info(msg string, kv ...interface{}) {
	a.zl.Info().Fields(kv).Msg(msg)
}

func (a *adapter) Error(msg string, kv ...interface{}) {
	a.zl.Error().Fields(kv).Msg(msg)
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nop{}
}

type nop struct{}

func (nop) Debug(string, ...interface{}) {}
func (nop) Info(string, ...interface{})  {}
func (nop) Error(string, ...interface{}) {}

// With returns a Logger that prepends keysAndValues to every entry.
func With(l Logger, keysAndValues ...interface{}) Logger {
	if a, ok := l.(*adapter); ok {
		return &adapter{zl: a.zl.With().Fields(keysAndValues).Logger()}
	}
	return &prefixed{next: l, kv: keysAndValues}
}

type prefixed struct {
	next Logger
	kv   []interface{}
}

func (p *prefixed) join(kv []interface{}) []interface{} {
	out := make([]interface{}, 0, len(p.kv)+len(kv))
	out = append(out, p.kv...)
	return append(out, kv...)
}

func (p *prefixed) Debug(msg string, kv ...interface{}) { p.next.Debug(msg, p.join(kv)...) }
func (p *prefixed) Info(msg string, kv ...interface{})  { p.next.Info(msg, p.join(kv)...) }
func (p *prefixed) Error(msg string, kv ...interface{}) { p.next.Error(msg, p.join(kv)...) }

type ctxKey struct{}

// NewContext returns a copy of ctx carrying l. Packages that log through
// FromContext pick it up, so fields added with With reach their entries.
func NewContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the Logger stored in ctx, or fallback when there is none.
func FromContext(ctx context.Context, fallback Logger) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
		return l
	}
	return fallback
}
