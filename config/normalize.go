package config

import "github.com/lab5e/nRF9160-barebone-fota/download"

// Defaults applied by Normalize.
const (
	DefaultReportPath      = "u"
	DefaultPollIntervalMs  = 500
	DefaultReplyTimeoutMs  = 60000
	DefaultBlockSize       = 256
	DefaultChunkSize       = 512
	DefaultAckTimeoutMs    = 2000
	DefaultMaxRetransmit   = 4
	DefaultWriteBlockSize  = 512
	DefaultFirmwareVersion = "1.0.0"
	DefaultManufacturer    = "Lab5e"
	DefaultSerialNumber    = "1"
	DefaultModelNumber     = "nrf9160 Fota Demo"
)

// Normalize fills in defaults.
// It mutates cfg and must be called only after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	setString(&cfg.Server.ReportPath, DefaultReportPath)
	setInt(&cfg.Server.PollIntervalMs, DefaultPollIntervalMs)
	setInt(&cfg.Server.ReplyTimeoutMs, DefaultReplyTimeoutMs)

	setString(&cfg.Identity.FirmwareVersion, DefaultFirmwareVersion)
	setString(&cfg.Identity.Manufacturer, DefaultManufacturer)
	setString(&cfg.Identity.SerialNumber, DefaultSerialNumber)
	setString(&cfg.Identity.ModelNumber, DefaultModelNumber)

	setString(&cfg.Download.Scheme, download.SchemeCoAP)
	setInt(&cfg.Download.BlockSize, DefaultBlockSize)
	setInt(&cfg.Download.ChunkSize, DefaultChunkSize)
	setInt(&cfg.Download.AckTimeoutMs, DefaultAckTimeoutMs)
	setInt(&cfg.Download.MaxRetransmit, DefaultMaxRetransmit)

	setInt(&cfg.Slot.WriteBlockSize, DefaultWriteBlockSize)

	setString(&cfg.Log.Level, "info")
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}
