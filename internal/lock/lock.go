// Package lock keeps two warehouse-mutating commands from running at once.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/sparkify/dwh/internal/config"
)

const DefaultPath = "~/.dwh/dwh.lock"

// ErrHeld is matched by the error Acquire returns when another process holds the lock.
var ErrHeld = errors.New("lock held")

// HeldError names the process holding the lock.
type HeldError struct {
	PID int
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("another dwh command is running (PID %d); only one command may change the warehouse at a time", e.PID)
}

func (e *HeldError) Is(target error) bool { return target == ErrHeld }

// Acquire creates the lock file with the current process PID. A lock left
// behind by a process that has exited is taken over.
func Acquire(path string) error {
	if path == "" {
		path = config.ExpandHome(DefaultPath)
	}

	if held, pid, err := IsHeld(path); err != nil {
		return err
	} else if held && pid != os.Getpid() {
		return &HeldError{PID: pid}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// Release removes the lock file.
func Release(path string) error {
	if path == "" {
		path = config.ExpandHome(DefaultPath)
	}
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsHeld checks if the lock is currently held by a running process.
func IsHeld(path string) (bool, int, error) {
	if path == "" {
		path = config.ExpandHome(DefaultPath)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0, nil
	}
	return isProcessRunning(pid), pid, nil
}

func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
