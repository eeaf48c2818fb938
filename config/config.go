// Package config loads the device configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lab5e/nRF9160-barebone-fota/logging"
	"github.com/lab5e/nRF9160-barebone-fota/tlv"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Identity IdentityConfig `yaml:"identity"`
	Download DownloadConfig `yaml:"download"`
	Slot     SlotConfig     `yaml:"slot"`
	Boot     BootConfig     `yaml:"boot"`
	Log      logging.Config `yaml:"log"`
}

// ---- SERVER ----

type ServerConfig struct {
	Address        string `yaml:"address"`
	ReportPath     string `yaml:"report_path"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	ReplyTimeoutMs int    `yaml:"reply_timeout_ms"`
}

// ---- IDENTITY ----

type IdentityConfig struct {
	FirmwareVersion string `yaml:"firmware_version"`
	Manufacturer    string `yaml:"manufacturer"`
	SerialNumber    string `yaml:"serial_number"`
	ModelNumber     string `yaml:"model_number"`
}

// Identity converts the section into the reported identity.
func (c IdentityConfig) Identity() tlv.Identity {
	return tlv.Identity{
		FirmwareVersion: c.FirmwareVersion,
		Manufacturer:    c.Manufacturer,
		SerialNumber:    c.SerialNumber,
		ModelNumber:     c.ModelNumber,
	}
}

// ---- DOWNLOAD ----

type DownloadConfig struct {
	Scheme        string `yaml:"scheme"`
	BlockSize     int    `yaml:"block_size"`
	ChunkSize     int    `yaml:"chunk_size"`
	AckTimeoutMs  int    `yaml:"ack_timeout_ms"`
	MaxRetransmit int    `yaml:"max_retransmit"`
}

// ---- SLOT ----

type SlotConfig struct {
	Path           string `yaml:"path"`
	Capacity       int64  `yaml:"capacity"`
	WriteBlockSize int    `yaml:"write_block_size"`
}

// ---- BOOT ----

type BootConfig struct {
	FlagPath        string `yaml:"flag_path"`
	RestartExitCode int    `yaml:"restart_exit_code"`
}

// Load reads and parses the YAML file at path. The result is neither
// validated nor normalized.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML configuration. Unknown keys are rejected.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// PollInterval is the reply poll interval.
func (c ServerConfig) PollInterval() time.Duration { return millis(c.PollIntervalMs) }

// ReplyTimeout bounds the wait for the report reply.
func (c ServerConfig) ReplyTimeout() time.Duration { return millis(c.ReplyTimeoutMs) }

// AckTimeout is the initial CoAP retransmission timeout.
func (c DownloadConfig) AckTimeout() time.Duration { return millis(c.AckTimeoutMs) }
