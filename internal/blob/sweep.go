package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// ReferenceChecker reports whether a stored path is still referenced.
type ReferenceChecker interface {
	HasImage(ctx context.Context, imagePath string) (bool, error)
}

// Entry is one stored binary.
type Entry struct {
	Path    string
	ModTime time.Time
}

// Walk calls fn for every stored binary below the store's prefix. Temporary
// upload files are skipped.
func (d *Disk) Walk(ctx context.Context, fn func(Entry) error) error {
	base := filepath.Join(d.root, filepath.FromSlash(d.prefix))
	return filepath.WalkDir(base, func(full string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if de.IsDir() || strings.HasPrefix(de.Name(), ".upload-") {
			return nil
		}
		info, err := de.Info()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, full)
		if err != nil {
			return err
		}
		return fn(Entry{Path: path.Clean(filepath.ToSlash(rel)), ModTime: info.ModTime()})
	})
}

// Sweeper removes binaries that no drawing references. A binary younger
// than the grace period is kept since its record may still be being written.
type Sweeper struct {
	disk  *Disk
	refs  ReferenceChecker
	clock clockwork.Clock
	grace time.Duration
}

// NewSweeper creates a sweeper for disk. A nil clock uses the real clock.
func NewSweeper(disk *Disk, refs ReferenceChecker, clock clockwork.Clock, grace time.Duration) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sweeper{disk: disk, refs: refs, clock: clock, grace: grace}
}

// Sweep runs one pass and returns the number of binaries removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.grace)
	removed := 0

	err := s.disk.Walk(ctx, func(e Entry) error {
		if e.ModTime.After(cutoff) {
			return nil
		}
		used, err := s.refs.HasImage(ctx, e.Path)
		if err != nil {
			return fmt.Errorf("check %s: %w", e.Path, err)
		}
		if used {
			return nil
		}
		if err := s.disk.Delete(ctx, e.Path); err != nil {
			slog.Warn("Sweeper failed to delete orphaned image", "image_path", e.Path, "error", err)
			return nil
		}
		slog.Info("Sweeper removed orphaned image", "image_path", e.Path, "age", s.clock.Since(e.ModTime).Round(time.Second))
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("sweep images: %w", err)
	}
	return removed, nil
}

// Start runs Sweep every interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Image sweeper started", "interval", interval, "grace", s.grace)

		for {
			select {
			case <-ticker.Chan():
				if n, err := s.Sweep(ctx); err != nil {
					slog.Error("Image sweep failed", "error", err, "removed", n)
				}
			case <-ctx.Done():
				slog.Info("Image sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
