package download

import (
	"net/http"
	"time"

	"github.com/lab5e/nRF9160-barebone-fota/logging"
)

// Config holds the download client configuration.
type Config struct {
	// BlockSize is the CoAP Block2 size: 16, 32, ..., 1024
	BlockSize int

	// ChunkSize is the read size for HTTP bodies
	ChunkSize int

	// AckTimeout is the initial CoAP retransmission timeout
	AckTimeout time.Duration

	// MaxRetransmit is the number of CoAP retransmissions per block
	MaxRetransmit int

	// HTTPClient is used for http and https endpoints
	HTTPClient *http.Client

	// Logger is used for logging operations (optional)
	Logger logging.Logger
}

// Defaults follow RFC 7252 transmission parameters and the 256-byte blocks
// the devices have always requested.
func defaultConfig() Config {
	return Config{
		BlockSize:     256,
		ChunkSize:     512,
		AckTimeout:    2 * time.Second,
		MaxRetransmit: 4,
		HTTPClient:    http.DefaultClient,
		Logger:        logging.Nop(),
	}
}

// Option is a functional option for configuring the Client.
type Option func(*Config)

// WithBlockSize sets the CoAP block size. Sizes that are not a power of two
// between 16 and 1024 are ignored.
func WithBlockSize(size int) Option {
	return func(c *Config) {
		if _, err := blockSZX(size); err == nil {
			c.BlockSize = size
		}
	}
}

// WithChunkSize sets the HTTP read size.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithAckTimeout sets the initial CoAP retransmission timeout.
func WithAckTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.AckTimeout = d
		}
	}
}

// WithMaxRetransmit sets the number of CoAP retransmissions per block.
func WithMaxRetransmit(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxRetransmit = n
		}
	}
}

// WithHTTPClient sets the client used for http and https endpoints.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		if client != nil {
			c.HTTPClient = client
		}
	}
}

// WithLogger sets a logger for download operations.
func WithLogger(logger logging.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}
