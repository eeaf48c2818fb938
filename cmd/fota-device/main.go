// Command fota-device runs one firmware update cycle against a FOTA server.
//
// At startup the running image is confirmed, so a freshly test-booted image
// becomes permanent. The device then reports its firmware version and, when
// the server schedules an update, downloads the image into the secondary
// slot, requests a test boot and exits for the supervisor to restart it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lab5e/nRF9160-barebone-fota/boot"
	"github.com/lab5e/nRF9160-barebone-fota/config"
	"github.com/lab5e/nRF9160-barebone-fota/download"
	"github.com/lab5e/nRF9160-barebone-fota/fota"
	"github.com/lab5e/nRF9160-barebone-fota/logging"
	"github.com/lab5e/nRF9160-barebone-fota/report"
	"github.com/lab5e/nRF9160-barebone-fota/storage"
	"github.com/lab5e/nRF9160-barebone-fota/transfer"
)

var errUpdateFailed = errors.New("update cycle failed")

func main() {
	os.Exit(realMain(os.Args[1:]))
}

// realMain runs the command and returns the process exit code, so deferred
// cleanup has run before the process exits.
func realMain(args []string) int {
	fs := flag.NewFlagSet("fota-device", flag.ContinueOnError)
	cfgPath := fs.String("config", "fota.yaml", "Path to the device configuration")
	progress := fs.Bool("progress", true, "Print a progress bar while downloading")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Printf("config load failed: %v", err)
		return 2
	}
	if err := config.Validate(cfg); err != nil {
		log.Printf("config validation failed: %v", err)
		return 2
	}
	config.Normalize(cfg)

	zl, err := logging.New(cfg.Log)
	if err != nil {
		log.Printf("logger setup failed: %v", err)
		return 2
	}
	logger := logging.Wrap(zl)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, cfg, logger, *progress); err != nil {
		zl.Error().Err(err).Msg("fota-device stopped")
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger, progress bool) error {
	flags := boot.NewFlagFile(cfg.Boot.FlagPath)
	if err := flags.Confirm(); err != nil {
		return fmt.Errorf("confirm running image: %w", err)
	}

	identity := cfg.Identity.Identity()
	logger.Info("firmware identity",
		"version", identity.FirmwareVersion,
		"manufacturer", identity.Manufacturer,
		"model", identity.ModelNumber,
		"serial", identity.SerialNumber,
	)

	reporter := report.New(report.UDPDialer, cfg.Server.Address, identity,
		report.WithPath(cfg.Server.ReportPath),
		report.WithPollInterval(cfg.Server.PollInterval()),
		report.WithReplyTimeout(cfg.Server.ReplyTimeout()),
		report.WithLogger(logger),
	)

	downloader := download.New(
		download.WithBlockSize(cfg.Download.BlockSize),
		download.WithChunkSize(cfg.Download.ChunkSize),
		download.WithAckTimeout(cfg.Download.AckTimeout()),
		download.WithMaxRetransmit(cfg.Download.MaxRetransmit),
		download.WithLogger(logger),
	)

	slot, err := storage.NewSlot(cfg.Slot.Path, cfg.Slot.Capacity,
		storage.WithWriteBlockSize(cfg.Slot.WriteBlockSize),
		storage.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer func() { _ = slot.Close() }()

	restarter := boot.ExitRestarter{Code: cfg.Boot.RestartExitCode, Logger: logger}
	finalizer := transfer.NewFinalizer(flags, restarter, logger)

	opts := []transfer.Option{
		transfer.WithScheme(cfg.Download.Scheme),
		transfer.WithLogger(logger),
	}
	if progress {
		bar := newProgressBar(os.Stdout, progressWidth)
		opts = append(opts, transfer.WithProgressCallback(bar.Update))
	}
	orchestrator := transfer.New(downloader, slot, finalizer, opts...)

	client := fota.New(reporter, orchestrator, fota.WithLogger(logger))
	outcome, err := client.Run(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", errUpdateFailed, err)
	}

	logger.Info("update cycle finished", "outcome", outcome.String())
	return nil
}
