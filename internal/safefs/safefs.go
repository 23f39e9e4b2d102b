// Package safefs wraps filesystem calls that may hang on stale or
// automounted paths (home directories, /usr/local on network storage) so
// callers can bound how long they wait.
package safefs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

var (
	osStat    = os.Stat
	osReadDir = os.ReadDir
)

// ErrTimeout classifies filesystem operations that did not complete within
// the configured timeout.
var ErrTimeout = errors.New("filesystem operation timed out")

// TimeoutError is returned when a filesystem operation exceeds its allowed duration.
// The underlying kernel call is not cancelled; we only stop waiting.
type TimeoutError struct {
	Op      string
	Path    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e == nil {
		return "filesystem operation timed out"
	}
	if e.Timeout > 0 {
		return fmt.Sprintf("%s %s: timeout after %s", e.Op, e.Path, e.Timeout)
	}
	return fmt.Sprintf("%s %s: timeout", e.Op, e.Path)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

func effectiveTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0
		}
		if remaining < timeout {
			return remaining
		}
	}
	return timeout
}

func bounded[T any](ctx context.Context, op, path string, timeout time.Duration, fn func(string) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	timeout = effectiveTimeout(ctx, timeout)
	if timeout <= 0 {
		return fn(path)
	}

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		val, err := fn(path)
		ch <- result{val: val, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, &TimeoutError{Op: op, Path: path, Timeout: timeout}
	}
}

// Stat is os.Stat bounded by timeout (0 waits indefinitely).
func Stat(ctx context.Context, path string, timeout time.Duration) (fs.FileInfo, error) {
	return bounded(ctx, "stat", path, timeout, osStat)
}

// ReadDir is os.ReadDir bounded by timeout (0 waits indefinitely).
func ReadDir(ctx context.Context, path string, timeout time.Duration) ([]os.DirEntry, error) {
	return bounded(ctx, "readdir", path, timeout, osReadDir)
}
