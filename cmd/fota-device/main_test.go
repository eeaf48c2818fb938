package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, flagPath string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := `server:
  address: "127.0.0.1:5683"
identity:
  firmware_version: "1.0.0"
  manufacturer: "Lab5e"
  serial_number: "SN-1"
  model_number: "nrf9160"
slot:
  path: "` + filepath.Join(dir, "slot.bin") + `"
  capacity: 4096
boot:
  flag_path: "` + flagPath + `"
log:
  level: "error"
  output: "stderr"
`
	path := filepath.Join(dir, "fota.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestRealMainBadFlag(t *testing.T) {
	assert.Equal(t, 2, realMain([]string{"-no-such-flag"}))
}

func TestRealMainMissingConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	assert.Equal(t, 2, realMain([]string{"-config", missing}))
}

func TestRealMainRunFailureReturnsExitCode(t *testing.T) {
	// The boot flag directory does not exist, so confirming the running
	// image fails before any network traffic.
	flagPath := filepath.Join(t.TempDir(), "absent", "boot.flag")
	cfgPath := writeConfig(t, flagPath)

	assert.Equal(t, 1, realMain([]string{"-config", cfgPath, "-progress=false"}))
}
