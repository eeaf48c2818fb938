// Package transfer downloads a scheduled firmware image into the secondary
// slot and hands it to the boot loader for a test boot.
//
// # Overview
//
// An Orchestrator runs one transfer through these states:
//
//	init -> size_check -> streaming -> flushing -> committed
//	  \________\_____________\____________\-----> aborted
//
//   - init: the storage region is erased before anything is written
//   - size_check: a declared image size larger than the region is rejected
//     before the first byte is stored
//   - streaming: chunks are appended strictly in arrival order
//   - flushing: a final empty append forces buffered bytes to storage
//   - committed: the image is marked for a test boot and the system restarts
//
// Every failure ends in aborted. Nothing is retried and no reboot is requested;
// the running image stays untouched.
//
// # Basic Usage
//
//	fin := transfer.NewFinalizer(bootctl, transfer.RestartFunc(restart), logger)
//	o := transfer.New(download.New(), slot, fin,
//	    transfer.WithProgressCallback(func(p transfer.Progress) {
//	        fmt.Printf("%.0f%% (%d bytes)\n", p.Percentage, p.BytesWritten)
//	    }),
//	)
//	res, err := o.Run(ctx, decision)
//
// # Error Handling
//
// The package provides structured error types:
//   - StorageError: erase, write or flush failed, or the image does not fit
//   - BootError: the test boot request or the restart failed
//   - DownloadError: the download could not start or ended with an error
//
// Use errors.Is with ErrImageTooLarge, ErrStorageInit, ErrStorageWrite,
// ErrStorageFlush, ErrBootRequest and ErrRestart to branch on the kind.
package transfer
