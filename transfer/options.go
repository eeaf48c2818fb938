package transfer

import (
	"github.com/lab5e/nRF9160-barebone-fota/download"
	"github.com/lab5e/nRF9160-barebone-fota/logging"
)

// Config holds the orchestrator configuration.
type Config struct {
	// ProgressCallback is called during the transfer (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger logging.Logger

	// Scheme selects the download protocol for decision endpoints
	Scheme string
}

func defaultConfig() Config {
	return Config{
		Logger: logging.Nop(),
		Scheme: download.SchemeCoAP,
	}
}

// Option is a functional option for configuring the Orchestrator.
type Option func(*Config)

// WithProgressCallback sets a callback function to track transfer progress.
//
// Example:
//
//	o := transfer.New(src, slot, fin,
//	    transfer.WithProgressCallback(func(p transfer.Progress) {
//	        fmt.Printf("%d bytes\n", p.BytesWritten)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for transfer operations.
func WithLogger(logger logging.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithScheme sets the scheme used to reach the decision's download endpoint.
func WithScheme(scheme string) Option {
	return func(c *Config) {
		if scheme != "" {
			c.Scheme = scheme
		}
	}
}
