package boot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagFileLifecycle(t *testing.T) {
	f := NewFlagFile(filepath.Join(t.TempDir(), "bootflag"))

	s, err := f.State()
	require.NoError(t, err)
	assert.Equal(t, StateNone, s)

	require.NoError(t, f.RequestTestBoot())
	pending, err := f.Pending()
	require.NoError(t, err)
	assert.True(t, pending)

	require.NoError(t, f.Confirm())
	s, err = f.State()
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, s)

	pending, err = f.Pending()
	require.NoError(t, err)
	assert.False(t, pending)

	require.NoError(t, f.Confirm())
}

func TestFlagFileInvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bootflag")
	require.NoError(t, os.WriteFile(path, []byte("swap-permanent\n"), 0o644))

	_, err := NewFlagFile(path).State()
	assert.Error(t, err)
}

func TestFlagFileLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewFlagFile(filepath.Join(dir, "bootflag")).RequestTestBoot())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bootflag", entries[0].Name())
}

func TestExitRestarter(t *testing.T) {
	var got int
	r := ExitRestarter{Code: 3, Exit: func(code int) { got = code }}
	require.NoError(t, r.Restart())
	assert.Equal(t, 3, got)
}
