package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrMockFailure is returned by MockSession for configured failures.
var ErrMockFailure = errors.New("mock statement failure")

// MockSession is a test double for the Session interface.
type MockSession struct {
	// FailOn fails the n-th Exec (1-based). Zero disables it.
	FailOn int
	// FailMatching fails any Exec whose SQL contains the substring.
	FailMatching string
	// Counts maps a SQL substring to the value QueryInt returns for it.
	Counts   map[string]int64
	QueryErr error
	CloseErr error

	mu       sync.Mutex
	Executed []string
	Queried  []string
	Closed   bool
}

func (m *MockSession) Exec(_ context.Context, sql string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.Executed) + 1
	if (m.FailOn > 0 && n == m.FailOn) || (m.FailMatching != "" && strings.Contains(sql, m.FailMatching)) {
		return fmt.Errorf("statement %d: %w", n, ErrMockFailure)
	}
	m.Executed = append(m.Executed, sql)
	return nil
}

func (m *MockSession) QueryInt(_ context.Context, sql string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queried = append(m.Queried, sql)
	if m.QueryErr != nil {
		return 0, m.QueryErr
	}
	for substr, v := range m.Counts {
		if strings.Contains(sql, substr) {
			return v, nil
		}
	}
	return 0, nil
}

func (m *MockSession) Close(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.CloseErr
}
