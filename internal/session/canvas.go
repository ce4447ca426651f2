package session

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sync"

	"github.com/ashureev/draw-labs/internal/domain"
)

// Default raster size of a new canvas.
const (
	DefaultCanvasWidth  = 800
	DefaultCanvasHeight = 600
)

// Background is the colour a cleared canvas is filled with.
var Background color.Color = color.White

// Point is a position in either display or raster space.
type Point struct {
	X, Y float64
}

// Brush is the fixed style of a stroke.
type Brush struct {
	Color color.Color
	Width float64
}

// DefaultBrush is a thin black pen.
var DefaultBrush = Brush{Color: color.Black, Width: 4}

// Renderer is the rendering side of stroke capture. Points are already in
// raster space.
type Renderer interface {
	DrawSegment(from, to Point, b Brush)
	Fill(c color.Color)
}

// Encoder serializes a surface to an uploadable image artifact.
type Encoder interface {
	EncodePNG() ([]byte, error)
}

// Canvas is a fixed-resolution RGBA raster.
type Canvas struct {
	mu  sync.Mutex
	img *image.RGBA
}

// NewCanvas returns a canvas of width×height filled with Background.
// Non-positive dimensions produce an empty canvas that cannot be encoded.
func NewCanvas(width, height int) *Canvas {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	c := &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
	c.Fill(Background)
	return c
}

// Size returns the raster dimensions.
func (c *Canvas) Size() (width, height int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

// Fill paints every pixel with col.
func (c *Canvas) Fill(col color.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

// DrawSegment paints a round-capped line of width b.Width from one point to another.
func (c *Canvas) DrawSegment(from, to Point, b Brush) {
	c.mu.Lock()
	defer c.mu.Unlock()

	radius := b.Width / 2
	if radius < 0.5 {
		radius = 0.5
	}
	col := color.RGBAModel.Convert(b.Color).(color.RGBA)

	dx, dy := to.X-from.X, to.Y-from.Y
	steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
	if steps == 0 {
		c.disc(from, radius, col)
		return
	}
	for i := 0; i <= steps; i++ {
		f := float64(i) / float64(steps)
		c.disc(Point{X: from.X + dx*f, Y: from.Y + dy*f}, radius, col)
	}
}

func (c *Canvas) disc(center Point, radius float64, col color.RGBA) {
	bounds := c.img.Bounds()
	minX := int(math.Floor(center.X - radius))
	maxX := int(math.Ceil(center.X + radius))
	minY := int(math.Floor(center.Y - radius))
	maxY := int(math.Ceil(center.Y + radius))
	r2 := radius * radius

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if !(image.Point{X: x, Y: y}).In(bounds) {
				continue
			}
			// Test the pixel centre.
			px, py := float64(x)+0.5-center.X, float64(y)+0.5-center.Y
			if px*px+py*py <= r2 {
				c.img.SetRGBA(x, y, col)
			}
		}
	}
}

// At returns the colour of a pixel.
func (c *Canvas) At(x, y int) color.Color {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img.At(x, y)
}

// EncodePNG serializes the raster as PNG.
func (c *Canvas) EncodePNG() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.img.Bounds().Empty() {
		return nil, &domain.EncodingError{Reason: "canvas has zero size"}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.img); err != nil {
		return nil, &domain.EncodingError{Reason: "png", Err: err}
	}
	return buf.Bytes(), nil
}
