package client

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ashureev/draw-labs/internal/domain"
	"github.com/containerd/errdefs"
	"golang.org/x/sync/semaphore"
)

// DefaultGalleryLimit is how many drawings the gallery shows.
const DefaultGalleryLimit = 12

// maxImageFetches bounds concurrent thumbnail downloads in LoadImages.
const maxImageFetches = 4

// Thumbnail is a gallery item's image. Broken marks an image whose binary
// is gone; it renders as a placeholder.
type Thumbnail struct {
	Drawing domain.DrawingView
	Data    []byte
	Broken  bool
}

// Gallery keeps the list of recent drawings in sync with the server. The
// number of drawings requested is fixed when the gallery is created.
type Gallery struct {
	transport Transport
	limit     int
	logger    *slog.Logger

	mu      sync.Mutex
	items   []domain.DrawingView
	lastErr error
	loading bool
	pending bool
}

// NewGallery creates an empty gallery showing up to limit drawings
// (clamped to [1, 50]; zero selects DefaultGalleryLimit).
func NewGallery(transport Transport, limit int, logger *slog.Logger) *Gallery {
	if limit == 0 {
		limit = DefaultGalleryLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gallery{
		transport: transport,
		limit:     domain.ClampListLimit(limit),
		logger:    logger,
	}
}

// Refresh fetches the newest drawings. A call made while a refresh is
// running does not start a second fetch; the running one fetches once more
// after it completes.
func (g *Gallery) Refresh(ctx context.Context) error {
	g.mu.Lock()
	if g.loading {
		g.pending = true
		g.mu.Unlock()
		return nil
	}
	g.loading = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.loading = false
		g.pending = false
		g.mu.Unlock()
	}()

	for {
		g.mu.Lock()
		g.pending = false
		g.mu.Unlock()

		items, err := g.transport.List(ctx, g.limit)

		g.mu.Lock()
		g.lastErr = err
		if err == nil {
			g.items = items
		}
		again := g.pending && err == nil && ctx.Err() == nil
		g.mu.Unlock()

		if err != nil {
			g.logger.Warn("Gallery refresh failed", "error", err)
			return err
		}
		if !again {
			return nil
		}
	}
}

// Items returns the drawings from the latest successful refresh, newest first.
func (g *Gallery) Items() []domain.DrawingView {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.DrawingView(nil), g.items...)
}

// Loading reports whether a refresh is in flight.
func (g *Gallery) Loading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loading
}

// Err returns the error of the latest refresh, if it failed.
func (g *Gallery) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// Limit returns the number of drawings requested per refresh.
func (g *Gallery) Limit() int { return g.limit }

// LoadImage fetches the image of d. A missing binary yields a broken
// thumbnail and no error.
func (g *Gallery) LoadImage(ctx context.Context, d domain.DrawingView) (Thumbnail, error) {
	data, err := g.transport.FetchImage(ctx, d.ImageURL)
	switch {
	case errdefs.IsNotFound(err):
		g.logger.Debug("Drawing image missing", "drawing_id", d.ID)
		return Thumbnail{Drawing: d, Broken: true}, nil
	case err != nil:
		return Thumbnail{Drawing: d, Broken: true}, err
	}
	return Thumbnail{Drawing: d, Data: data}, nil
}

// LoadImages fetches the thumbnails of items, keeping their order. Failed
// fetches become broken thumbnails; the first such error is returned.
func (g *Gallery) LoadImages(ctx context.Context, items []domain.DrawingView) ([]Thumbnail, error) {
	thumbs := make([]Thumbnail, len(items))
	errs := make([]error, len(items))
	sem := semaphore.NewWeighted(maxImageFetches)

	var wg sync.WaitGroup
	for i, d := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(items); j++ {
				thumbs[j] = Thumbnail{Drawing: items[j], Broken: true}
				errs[j] = err
			}
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			thumbs[i], errs[i] = g.LoadImage(ctx, d)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return thumbs, err
		}
	}
	return thumbs, nil
}
