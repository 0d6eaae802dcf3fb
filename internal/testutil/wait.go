// Package testutil provides polling and fixture helpers shared by tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WaitOptions configures WaitFor behavior.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// WaitOption is a functional option for WaitFor.
type WaitOption func(*WaitOptions)

// WithTimeout sets the maximum wait time (default: 10s).
func WithTimeout(d time.Duration) WaitOption {
	return func(o *WaitOptions) {
		o.Timeout = d
	}
}

// WithInterval sets the polling interval (default: 20ms).
func WithInterval(d time.Duration) WaitOption {
	return func(o *WaitOptions) {
		o.Interval = d
	}
}

func defaultOptions() WaitOptions {
	return WaitOptions{
		Timeout:  10 * time.Second,
		Interval: 20 * time.Millisecond,
	}
}

// WaitFor polls until condition returns true or timeout is reached.
// Returns true if condition was met, false on timeout.
func WaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) bool {
	tb.Helper()

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	deadline := time.Now().Add(o.Timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(o.Interval)
	}
	return condition()
}

// MustWaitFor polls until condition returns true or fails the test on timeout.
func MustWaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) {
	tb.Helper()
	if !WaitFor(tb, condition, opts...) {
		tb.Fatal("timed out waiting for condition")
	}
}

// WriteFiles creates files under dir from a name to content map. Names may
// contain subdirectories.
func WriteFiles(tb testing.TB, dir string, files map[string]string) {
	tb.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			tb.Fatalf("failed to create dir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			tb.Fatalf("failed to write %s: %v", name, err)
		}
	}
}
