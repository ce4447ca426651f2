// Package blob stores uploaded image binaries.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ashureev/draw-labs/internal/domain"
	"github.com/google/uuid"
)

// Store persists binaries under server-chosen paths.
type Store interface {
	// Store writes data and returns the path it was saved under. The
	// extension of suggestedName is kept; the rest of the name is not.
	Store(ctx context.Context, data []byte, suggestedName string) (string, error)

	// Exists reports whether path holds a binary.
	Exists(ctx context.Context, path string) (bool, error)

	// Open streams the binary at path. It returns domain.ErrNotFound when absent.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the binary at path. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error
}

// Disk is a Store rooted at a local directory.
type Disk struct {
	root   string
	prefix string
}

// NewDisk creates a disk store that writes below root/prefix.
func NewDisk(root, prefix string) (*Disk, error) {
	if err := os.MkdirAll(filepath.Join(root, prefix), 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Disk{root: root, prefix: prefix}, nil
}

// Store writes data to prefix/<uuid><ext>.
func (d *Disk) Store(ctx context.Context, data []byte, suggestedName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + strings.ToLower(path.Ext(suggestedName))
	rel := path.Join(d.prefix, name)
	full, err := d.resolve(rel)
	if err != nil {
		return "", err
	}

	// Write to a temp file first so a half-written image is never visible.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return rel, nil
}

// Exists reports whether path is a stored file.
func (d *Disk) Exists(_ context.Context, p string) (bool, error) {
	full, err := d.resolve(p)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat blob: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// Open returns a reader for path.
func (d *Disk) Open(_ context.Context, p string) (io.ReadCloser, error) {
	full, err := d.resolve(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open blob %s: %w", p, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

// Delete removes path.
func (d *Disk) Delete(_ context.Context, p string) error {
	full, err := d.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// resolve maps a stored path to a file below root, rejecting escapes.
func (d *Disk) resolve(p string) (string, error) {
	clean := path.Clean("/" + p)
	if clean == "/" {
		return "", fmt.Errorf("resolve blob %q: %w", p, domain.ErrNotFound)
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}
