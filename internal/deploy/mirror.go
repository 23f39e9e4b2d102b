// Package deploy keeps an executable copy of the program outside the
// noexec home directory and points the backup completion hook at it.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/logging"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/safefs"
)

const (
	mirrorMode  = 0o755
	statTimeout = 5 * time.Second
)

// Artifact is the freshness view of the source and its mirror.
type Artifact struct {
	SourcePath    string
	MirrorPath    string
	SourceModTime time.Time
	MirrorModTime time.Time
	MirrorPresent bool
}

// Stale reports whether the mirror is missing or older than the source.
func (a Artifact) Stale() bool {
	return !a.MirrorPresent || a.MirrorModTime.Before(a.SourceModTime)
}

// Mirror manages the secondary copy.
type Mirror struct {
	Source string
	Target string
	Logger *logging.Logger
}

// Inspect stats both files.
func (m Mirror) Inspect(ctx context.Context) (Artifact, error) {
	a := Artifact{SourcePath: m.Source, MirrorPath: m.Target}

	src, err := safefs.Stat(ctx, m.Source, statTimeout)
	if err != nil {
		return a, fmt.Errorf("stat source %s: %w", m.Source, err)
	}
	a.SourceModTime = src.ModTime()

	dst, err := safefs.Stat(ctx, m.Target, statTimeout)
	switch {
	case err == nil:
		a.MirrorPresent = true
		a.MirrorModTime = dst.ModTime()
	case errors.Is(err, fs.ErrNotExist):
	default:
		return a, fmt.Errorf("stat mirror %s: %w", m.Target, err)
	}
	return a, nil
}

// IsStale reports Artifact.Stale for the current files.
func (m Mirror) IsStale(ctx context.Context) (bool, error) {
	a, err := m.Inspect(ctx)
	if err != nil {
		return false, err
	}
	return a.Stale(), nil
}

// Ensure copies the source over the mirror (temp file and rename), marks
// it executable and pins its mtime to the source's so staleness is a plain
// timestamp comparison. Safe to call repeatedly.
func (m Mirror) Ensure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := os.Open(m.Source)
	if err != nil {
		return fmt.Errorf("open source %s: %w", m.Source, err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat source %s: %w", m.Source, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("source %s is not a regular file", m.Source)
	}

	dir := filepath.Dir(m.Target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mirror directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(m.Target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("copy %s to %s: %w", m.Source, tmpPath, err)
	}
	if err := tmp.Chmod(mirrorMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Chtimes(tmpPath, time.Now(), info.ModTime()); err != nil {
		return fmt.Errorf("set mtime on %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, m.Target); err != nil {
		return fmt.Errorf("install mirror %s: %w", m.Target, err)
	}

	m.Logger.Info("Mirror refreshed: %s -> %s", m.Source, m.Target)
	return nil
}

// Sync refreshes the mirror only when it is stale or its content differs.
func (m Mirror) Sync(ctx context.Context) (bool, error) {
	a, err := m.Inspect(ctx)
	if err != nil {
		return false, err
	}
	if !a.Stale() {
		same, err := m.ContentMatches()
		if err != nil {
			return false, err
		}
		if same {
			m.Logger.Skip("Mirror %s is up to date", m.Target)
			return false, nil
		}
	}
	if err := m.Ensure(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the mirror. A missing mirror is not an error.
func (m Mirror) Remove() (bool, error) {
	if err := os.Remove(m.Target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("remove mirror %s: %w", m.Target, err)
	}
	return true, nil
}

// ContentMatches compares BLAKE2b digests of source and mirror. A missing
// mirror never matches.
func (m Mirror) ContentMatches() (bool, error) {
	want, err := digest(m.Source)
	if err != nil {
		return false, err
	}
	got, err := digest(m.Target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return want == got, nil
}

func digest(path string) ([blake2b.Size256]byte, error) {
	var sum [blake2b.Size256]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return sum, err
	}
	if _, err := io.Copy(h, f); err != nil {
		return sum, fmt.Errorf("hash %s: %w", path, err)
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
