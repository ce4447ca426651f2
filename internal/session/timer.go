// Package session implements the client-side drawing session: the countdown
// timer, freehand stroke capture onto a raster canvas, and the controller that
// ties them to the current prompt.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/ashureev/draw-labs/internal/domain"
	"github.com/jonboulle/clockwork"
)

// TimerState is a snapshot of the countdown.
type TimerState struct {
	PresetSeconds    int
	RemainingSeconds int
	Running          bool
	// Expired is set when ticking drove the countdown to zero.
	Expired bool
}

// Timer is a one-second countdown. Ticks come from the injected clock while
// running; every stop bumps a generation so a tick already in flight for the
// previous run is discarded.
type Timer struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	preset    int
	remaining int
	running   bool
	expired   bool

	gen      uint64
	ticker   clockwork.Ticker
	stopCh   chan struct{}
	onChange func(TimerState)
}

// NewTimer creates a stopped timer set to preset seconds.
func NewTimer(clock clockwork.Clock, preset int) *Timer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Timer{
		clock:     clock,
		preset:    preset,
		remaining: preset,
	}
}

// OnChange registers fn to be called after every state change. fn runs
// without the timer lock held.
func (t *Timer) OnChange(fn func(TimerState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// State returns the current countdown state.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

// SelectPreset stops the timer and sets the countdown to seconds.
func (t *Timer) SelectPreset(seconds int) error {
	if !domain.IsTimerPreset(seconds) {
		v := domain.NewValidationError()
		v.Add("time_limit_seconds", fmt.Sprintf("%d is not an available timer preset.", seconds))
		return v
	}
	t.mutate(func() {
		t.stopLocked()
		t.preset = seconds
		t.remaining = seconds
		t.expired = false
	})
	return nil
}

// Start runs the countdown. A timer sitting at zero restarts from its preset.
// Starting a running timer is a no-op.
func (t *Timer) Start() {
	t.mutate(func() {
		if t.running {
			return
		}
		if t.remaining == 0 {
			t.remaining = t.preset
		}
		t.expired = false
		t.running = true
		t.startTickerLocked()
	})
}

// Pause stops the countdown, keeping the remaining time.
func (t *Timer) Pause() {
	t.mutate(func() {
		t.stopLocked()
	})
}

// Reset stops the countdown and restores the preset.
func (t *Timer) Reset() {
	t.mutate(func() {
		t.stopLocked()
		t.remaining = t.preset
		t.expired = false
	})
}

// Tick advances the countdown by one second. It is a no-op unless running.
func (t *Timer) Tick() {
	t.mutate(func() {
		t.tickLocked()
	})
}

// Close stops any running ticker.
func (t *Timer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) tickLocked() bool {
	if !t.running {
		return false
	}
	if t.remaining > 0 {
		t.remaining--
	}
	if t.remaining == 0 {
		t.stopLocked()
		t.expired = true
	}
	return true
}

// mutate applies fn under the lock and notifies the observer afterwards.
func (t *Timer) mutate(fn func()) {
	t.mu.Lock()
	fn()
	state := t.stateLocked()
	notify := t.onChange
	t.mu.Unlock()

	if notify != nil {
		notify(state)
	}
}

func (t *Timer) stateLocked() TimerState {
	return TimerState{
		PresetSeconds:    t.preset,
		RemainingSeconds: t.remaining,
		Running:          t.running,
		Expired:          t.expired,
	}
}

// stopLocked halts the ticker and invalidates any tick already delivered.
func (t *Timer) stopLocked() {
	t.running = false
	t.gen++
	if t.ticker != nil {
		t.ticker.Stop()
		close(t.stopCh)
		t.ticker = nil
		t.stopCh = nil
	}
}

func (t *Timer) startTickerLocked() {
	t.gen++
	gen := t.gen
	ticker := t.clock.NewTicker(time.Second)
	stop := make(chan struct{})
	t.ticker = ticker
	t.stopCh = stop

	go func() {
		for {
			select {
			case <-ticker.Chan():
				t.deliver(gen)
			case <-stop:
				return
			}
		}
	}()
}

// deliver applies a tick from the ticker started for generation gen.
func (t *Timer) deliver(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	changed := t.tickLocked()
	state := t.stateLocked()
	notify := t.onChange
	t.mu.Unlock()

	if changed && notify != nil {
		notify(state)
	}
}
