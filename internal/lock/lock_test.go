package lock

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dwh.lock")

	require.NoError(t, Acquire(path))
	held, pid, err := IsHeld(path)
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, Release(path))
	held, _, err = IsHeld(path)
	require.NoError(t, err)
	assert.False(t, held)

	// Releasing twice is fine.
	require.NoError(t, Release(path))
}

func TestAcquire_HeldByLiveProcess(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	path := filepath.Join(t.TempDir(), "dwh.lock")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(cmd.Process.Pid)), 0o644))

	err := Acquire(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeld)

	var held *HeldError
	require.ErrorAs(t, err, &held)
	assert.Equal(t, cmd.Process.Pid, held.PID)
}

func TestAcquire_TakesOverStaleLock(t *testing.T) {
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("cannot run helper process: %v", err)
	}
	path := filepath.Join(t.TempDir(), "dwh.lock")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(cmd.Process.Pid)), 0o644))

	require.NoError(t, Acquire(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestIsHeld_GarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dwh.lock")
	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0o644))

	held, pid, err := IsHeld(path)
	require.NoError(t, err)
	assert.False(t, held)
	assert.Zero(t, pid)
}
