// Package file keeps client cache databases as files in one directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const (
	dbExt      = ".db"
	lockExt    = ".lock"
	retryDelay = 25 * time.Millisecond
)

// companion files written next to an embedded database
var sidecars = []string{"", "-wal", "-shm", "-journal"}

// ErrInvalidName is returned for names that would escape the directory.
var ErrInvalidName = errors.New("invalid database name")

// Databases deletes <dir>/<name>.db and its sidecar files while holding
// <name>.lock, so a process that has the database open under the same lock is
// never left with a half-deleted file set.
type Databases struct {
	dir         string
	lockTimeout time.Duration
}

// NewDatabases creates a store rooted at dir.
func NewDatabases(dir string, lockTimeout time.Duration) *Databases {
	if lockTimeout <= 0 {
		lockTimeout = 2 * time.Second
	}
	return &Databases{dir: dir, lockTimeout: lockTimeout}
}

// Dir returns the root directory.
func (d *Databases) Dir() string { return d.dir }

func (d *Databases) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(d.dir, name+dbExt), nil
}

// Path returns the file backing name.
func (d *Databases) Path(name string) (string, error) {
	return d.path(name)
}

// DeleteDatabase removes the database called name. A missing database is not
// an error.
func (d *Databases) DeleteDatabase(ctx context.Context, name string) error {
	path, err := d.path(name)
	if err != nil {
		return err
	}

	lock := flock.New(filepath.Join(d.dir, name+lockExt))
	lockCtx, cancel := context.WithTimeout(ctx, d.lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, retryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", name, err)
	}
	if !locked {
		return fmt.Errorf("failed to lock %s: busy", name)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	var errs []error
	for _, suffix := range sidecars {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// Create makes an empty database file for name if none exists.
func (d *Databases) Create(name string) error {
	path, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	return f.Close()
}
