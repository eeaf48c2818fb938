// Package fota runs firmware update cycles.
//
// A cycle reports the running firmware to the FOTA server, and when the
// server schedules an update, downloads the image and commits it for a test
// boot:
//
//	client := fota.New(reporter, orchestrator, fota.WithLogger(logger))
//	outcome, err := client.Run(ctx)
//
// Each cycle gets a random ID that is attached to every log entry it writes.
// The cycle logger travels in the context, so the reporter and transfer log
// with the same ID.
// Only one cycle runs at a time.
package fota
