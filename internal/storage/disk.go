// Package storage keeps uploaded blobs as plain files in one directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned by Write for names that would escape the
// upload directory.
var ErrInvalidName = errors.New("invalid blob name")

// Disk stores blobs under a single directory.
type Disk struct {
	dir string
}

// New returns a Disk rooted at dir, creating the directory if needed.
func New(dir string) (*Disk, error) {
	if dir == "" {
		return nil, errors.New("upload directory is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Disk{dir: abs}, nil
}

// Dir returns the absolute upload directory.
func (d *Disk) Dir() string {
	return d.dir
}

// Write streams r into a new file called name and returns its path and
// size. The file must not already exist. On any failure the partial
// file is removed.
func (d *Disk) Write(ctx context.Context, name string, r io.Reader) (path string, size int64, err error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	path = filepath.Join(d.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", 0, fmt.Errorf("create blob: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(path)
		}
	}()

	size, err = io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return "", 0, fmt.Errorf("write blob: %w", err)
	}
	if err = f.Sync(); err != nil {
		return "", 0, fmt.Errorf("sync blob: %w", err)
	}
	if err = f.Close(); err != nil {
		return "", 0, fmt.Errorf("close blob: %w", err)
	}
	return path, size, nil
}

// Stat reports the size of the regular file at path and whether it
// exists. A missing file is not an error.
func (d *Disk) Stat(path string) (size int64, exists bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if !info.Mode().IsRegular() {
		return 0, false, nil
	}
	return info.Size(), true, nil
}

// Open opens the blob at path for reading.
func (d *Disk) Open(path string) (*os.File, error) {
	return os.Open(path)
}

// Remove deletes the blob at path. A missing file is reported with an
// error wrapping os.ErrNotExist.
func (d *Disk) Remove(path string) error {
	return os.Remove(path)
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
