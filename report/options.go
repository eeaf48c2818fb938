package report

import (
	"time"

	"github.com/lab5e/nRF9160-barebone-fota/logging"
)

// Config holds the reporter configuration.
type Config struct {
	// Path is the Uri-Path of the report resource on the server
	Path string

	// PollInterval is how long each wait for the reply lasts
	PollInterval time.Duration

	// ReplyTimeout is the overall ceiling for the reply to arrive
	ReplyTimeout time.Duration

	// Logger is used for logging operations (optional)
	Logger logging.Logger
}

// DefaultPath is the report resource served by the FOTA server.
const DefaultPath = "u"

func defaultConfig() Config {
	return Config{
		Path:         DefaultPath,
		PollInterval: 500 * time.Millisecond,
		ReplyTimeout: 60 * time.Second,
		Logger:       logging.Nop(),
	}
}

// Option is a functional option for configuring the Reporter.
type Option func(*Config)

// WithPath sets the Uri-Path of the report resource.
func WithPath(path string) Option {
	return func(c *Config) {
		if path != "" {
			c.Path = path
		}
	}
}

// WithPollInterval sets how long each wait for the reply lasts.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PollInterval = d
		}
	}
}

// WithReplyTimeout sets the overall reply ceiling.
//
// Example:
//
//	r := report.New(dial, addr, id, report.WithReplyTimeout(10*time.Second))
func WithReplyTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.ReplyTimeout = d
		}
	}
}

// WithLogger sets a logger for report operations.
func WithLogger(logger logging.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}
