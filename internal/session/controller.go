package session

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/draw-labs/internal/domain"
	"github.com/ashureev/draw-labs/internal/prompt"
	"github.com/jonboulle/clockwork"
)

// Snapshot is an immutable copy of the session data a submission needs.
type Snapshot struct {
	Mode             domain.Mode
	Prompt           string
	PromptSource     domain.PromptType
	TimerSeconds     int
	RemainingSeconds int
	Running          bool
}

// Options configures a Controller. Zero values select defaults.
type Options struct {
	Clock        clockwork.Clock
	Catalog      *prompt.Catalog
	Rand         *rand.Rand
	CanvasWidth  int
	CanvasHeight int
	Preset       int
}

// Controller owns one drawing session: mode, prompt, timer and canvas.
type Controller struct {
	mu           sync.Mutex
	mode         domain.Mode
	prompt       string
	promptSource domain.PromptType

	catalog *prompt.Catalog
	rng     *rand.Rand

	timer   *Timer
	canvas  *Canvas
	capture *Capture
}

// NewController creates a challenge-mode session showing no prompt yet.
func NewController(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Catalog == nil {
		opts.Catalog = prompt.Default()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(opts.Clock.Now().UnixNano()))
	}
	if opts.CanvasWidth == 0 && opts.CanvasHeight == 0 {
		opts.CanvasWidth, opts.CanvasHeight = DefaultCanvasWidth, DefaultCanvasHeight
	}
	if !domain.IsTimerPreset(opts.Preset) {
		opts.Preset = domain.DefaultTimerPreset
	}

	canvas := NewCanvas(opts.CanvasWidth, opts.CanvasHeight)
	return &Controller{
		mode:    domain.ModeChallenge,
		catalog: opts.Catalog,
		rng:     opts.Rand,
		timer:   NewTimer(opts.Clock, opts.Preset),
		canvas:  canvas,
		capture: NewCapture(canvas, opts.CanvasWidth, opts.CanvasHeight),
	}
}

// SetPrompt replaces the prompt. Timer and drawing are untouched.
func (c *Controller) SetPrompt(text string, source domain.PromptType) error {
	if !source.Valid() {
		v := domain.NewValidationError()
		v.Add("prompt_type", "The selected prompt type is invalid.")
		return v
	}
	if strings.TrimSpace(text) == "" {
		v := domain.NewValidationError()
		v.Add("prompt", "The prompt field is required.")
		return v
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompt = text
	c.promptSource = source
	return nil
}

// PickTodayPrompt selects the catalog prompt for the calendar day of date.
func (c *Controller) PickTodayPrompt(date time.Time) string {
	p := c.catalog.ForDate(date)
	c.mu.Lock()
	c.prompt = p
	c.promptSource = domain.PromptToday
	c.mu.Unlock()
	return p
}

// PickRandomPrompt selects a prompt uniformly from the catalog.
func (c *Controller) PickRandomPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompt = c.catalog.Random(c.rng)
	c.promptSource = domain.PromptRandom
	return c.prompt
}

// SetMode switches between challenge and practice. The canvas is kept.
func (c *Controller) SetMode(mode domain.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("set mode %q: %w", mode, domain.ErrInvalidMode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	return nil
}

// SelectPreset changes the countdown length, stopping and resetting the timer.
func (c *Controller) SelectPreset(seconds int) error {
	return c.timer.SelectPreset(seconds)
}

// Timer returns the session's countdown.
func (c *Controller) Timer() *Timer { return c.timer }

// Capture returns the stroke engine pointer input is dispatched to.
func (c *Controller) Capture() *Capture { return c.capture }

// Surface returns the raster the pipeline encodes.
func (c *Controller) Surface() *Canvas { return c.canvas }

// Snapshot copies the current session data.
func (c *Controller) Snapshot() Snapshot {
	ts := c.timer.State()
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Mode:             c.mode,
		Prompt:           c.prompt,
		PromptSource:     c.promptSource,
		TimerSeconds:     ts.PresetSeconds,
		RemainingSeconds: ts.RemainingSeconds,
		Running:          ts.Running,
	}
}

// Close stops the timer's ticker.
func (c *Controller) Close() {
	c.timer.Close()
}
