package config

import (
	"fmt"
	"net"

	"github.com/coreos/go-semver/semver"

	"github.com/lab5e/nRF9160-barebone-fota/download"
)

// Validate checks configuration correctness.
// It performs declarative validation only and does not mutate cfg.
// Zero values are accepted wherever Normalize supplies a default.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ---- server ----
	if cfg.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if _, _, err := net.SplitHostPort(cfg.Server.Address); err != nil {
		return fmt.Errorf("server.address %q: %w", cfg.Server.Address, err)
	}
	if cfg.Server.PollIntervalMs < 0 || cfg.Server.ReplyTimeoutMs < 0 {
		return fmt.Errorf("server: intervals must not be negative")
	}
	if cfg.Server.PollIntervalMs > 0 && cfg.Server.ReplyTimeoutMs > 0 &&
		cfg.Server.PollIntervalMs > cfg.Server.ReplyTimeoutMs {
		return fmt.Errorf(
			"server: poll_interval_ms %d exceeds reply_timeout_ms %d",
			cfg.Server.PollIntervalMs,
			cfg.Server.ReplyTimeoutMs,
		)
	}

	// ---- identity ----
	if v := cfg.Identity.FirmwareVersion; v != "" {
		if _, err := semver.NewVersion(v); err != nil {
			return fmt.Errorf("identity.firmware_version %q is not a semantic version: %w", v, err)
		}
	}
	if err := cfg.Identity.Identity().Validate(); err != nil {
		return fmt.Errorf("identity: %w", err)
	}

	// ---- download ----
	switch cfg.Download.Scheme {
	case "", download.SchemeCoAP, download.SchemeHTTP, download.SchemeHTTPS:
	default:
		return fmt.Errorf("download.scheme %q is not supported", cfg.Download.Scheme)
	}
	if bs := cfg.Download.BlockSize; bs != 0 && !validBlockSize(bs) {
		return fmt.Errorf("download.block_size %d must be a power of two between 16 and 1024", bs)
	}
	if cfg.Download.ChunkSize < 0 || cfg.Download.AckTimeoutMs < 0 || cfg.Download.MaxRetransmit < 0 {
		return fmt.Errorf("download: values must not be negative")
	}

	// ---- slot ----
	if cfg.Slot.Path == "" {
		return fmt.Errorf("slot.path is required")
	}
	if cfg.Slot.Capacity <= 0 {
		return fmt.Errorf("slot.capacity must be positive")
	}
	if cfg.Slot.WriteBlockSize < 0 {
		return fmt.Errorf("slot.write_block_size must not be negative")
	}

	// ---- boot ----
	if cfg.Boot.FlagPath == "" {
		return fmt.Errorf("boot.flag_path is required")
	}

	return nil
}

func validBlockSize(n int) bool {
	return n >= 16 && n <= 1024 && n&(n-1) == 0
}
