package session

import (
	"sync"
)

// PointerEvent is a pointer-device sample in on-screen pixel coordinates.
type PointerEvent struct {
	PointerID int
	X, Y      float64
}

// StrokeEngine is the capability set any stroke capture backend provides.
type StrokeEngine interface {
	BeginStroke(ev PointerEvent, b Brush)
	ExtendStroke(ev PointerEvent)
	EndStroke()
	Clear()
}

// Capture turns pointer events into strokes on a Renderer. It maps every
// event from display space to the renderer's fixed raster space.
type Capture struct {
	mu       sync.Mutex
	renderer Renderer

	rasterW, rasterH   float64
	displayW, displayH float64

	open    bool
	pointer int
	brush   Brush
	last    Point
	strokes int
}

var _ StrokeEngine = (*Capture)(nil)

// NewCapture creates a stroke engine drawing onto r, whose raster is
// rasterW×rasterH pixels. Until SetDisplaySize is called the display is
// assumed to match the raster.
func NewCapture(r Renderer, rasterW, rasterH int) *Capture {
	return &Capture{
		renderer: r,
		rasterW:  float64(rasterW),
		rasterH:  float64(rasterH),
		displayW: float64(rasterW),
		displayH: float64(rasterH),
	}
}

// SetDisplaySize records the on-screen size the raster is rendered at.
func (c *Capture) SetDisplaySize(width, height float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.displayW = width
	c.displayH = height
}

// ToRaster maps a display-space position to raster space.
func (c *Capture) ToRaster(x, y float64) Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toRasterLocked(x, y)
}

func (c *Capture) toRasterLocked(x, y float64) Point {
	sx, sy := 1.0, 1.0
	if c.displayW > 0 {
		sx = c.rasterW / c.displayW
	}
	if c.displayH > 0 {
		sy = c.rasterH / c.displayH
	}
	return Point{X: x * sx, Y: y * sy}
}

// BeginStroke opens a stroke at ev and captures its pointer. An open stroke
// is closed first.
func (c *Capture) BeginStroke(ev PointerEvent, b Brush) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b.Color == nil {
		b.Color = DefaultBrush.Color
	}
	if b.Width <= 0 {
		b.Width = DefaultBrush.Width
	}
	c.open = true
	c.pointer = ev.PointerID
	c.brush = b
	c.last = c.toRasterLocked(ev.X, ev.Y)
	c.strokes++
}

// ExtendStroke draws from the last point to ev. Events are ignored when no
// stroke is open or when they come from a pointer other than the captured one.
func (c *Capture) ExtendStroke(ev PointerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open || ev.PointerID != c.pointer {
		return
	}
	p := c.toRasterLocked(ev.X, ev.Y)
	c.renderer.DrawSegment(c.last, p, c.brush)
	c.last = p
}

// EndStroke closes the open stroke, if any.
func (c *Capture) EndStroke() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

// PointerLeave ends the open stroke when the captured pointer leaves the
// drawable region.
func (c *Capture) PointerLeave(ev PointerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open && ev.PointerID == c.pointer {
		c.open = false
	}
}

// Clear wipes the raster to Background. There is no undo.
func (c *Capture) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.strokes = 0
	c.renderer.Fill(Background)
}

// Drawing reports whether a stroke is open.
func (c *Capture) Drawing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// StrokeCount returns the number of strokes begun since the last Clear.
func (c *Capture) StrokeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strokes
}
