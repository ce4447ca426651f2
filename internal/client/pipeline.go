package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ashureev/draw-labs/internal/domain"
	"github.com/ashureev/draw-labs/internal/session"
	"github.com/jonboulle/clockwork"
)

// State is the lifecycle position of a submission.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the pipeline.
type Status struct {
	State  State
	Reason string   // user-facing text when State is StateFailed
	Err    error    // classified failure when State is StateFailed
	Result *Created // set when State is StateSucceeded
}

// Refresher is notified after a successful submission.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// PipelineOptions configures a Pipeline. Zero values select defaults.
type PipelineOptions struct {
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Gallery Refresher
}

// Pipeline turns a session's raster into a stored drawing. At most one
// submission is in flight at a time.
type Pipeline struct {
	transport Transport
	clock     clockwork.Clock
	logger    *slog.Logger
	gallery   Refresher

	mu       sync.Mutex
	status   Status
	nextID   uint64
	tracking uint64 // request in flight whose completion may update status; 0 for none
}

// NewPipeline creates an idle pipeline sending through transport.
func NewPipeline(transport Transport, opts PipelineOptions) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{
		transport: transport,
		clock:     opts.Clock,
		logger:    opts.Logger,
		gallery:   opts.Gallery,
	}
}

// Submit validates, encodes and uploads the drawing described by snap and
// surface. It returns domain.ErrSubmitInFlight without side effects while
// another submission is being transmitted. Every other failure leaves the
// pipeline in StateFailed and is also returned.
func (p *Pipeline) Submit(ctx context.Context, snap session.Snapshot, surface session.Encoder) (*Created, error) {
	p.mu.Lock()
	if p.tracking != 0 {
		p.mu.Unlock()
		return nil, domain.ErrSubmitInFlight
	}
	p.nextID++
	id := p.nextID
	p.tracking = id
	p.status = Status{State: StateSubmitting}
	p.mu.Unlock()

	fields := domain.SubmissionFields{
		Prompt:           snap.Prompt,
		PromptType:       snap.PromptSource,
		TimeLimitSeconds: snap.TimerSeconds,
	}
	v := domain.NewValidationError()
	fields.Validate(v)
	if err := v.OrNil(); err != nil {
		return nil, p.fail(id, err)
	}

	data, err := surface.EncodePNG()
	if err != nil {
		var encErr *domain.EncodingError
		if !errors.As(err, &encErr) {
			err = &domain.EncodingError{Reason: "png", Err: err}
		}
		return nil, p.fail(id, err)
	}

	upload := Upload{
		Fields:   fields,
		Filename: "drawing-" + p.clock.Now().Format("20060102-150405") + ".png",
		Image:    data,
	}
	p.logger.Info("Submitting drawing", "request", id, "filename", upload.Filename, "bytes", len(data))

	created, err := p.transport.Upload(ctx, upload)
	if err != nil {
		return nil, p.fail(id, err)
	}

	if !p.finish(id, Status{State: StateSucceeded, Result: created}) {
		p.logger.Debug("Discarded stale submission result", "request", id, "drawing_id", created.ID)
		return created, nil
	}
	p.logger.Info("Drawing submitted", "request", id, "drawing_id", created.ID)

	if p.gallery != nil {
		if err := p.gallery.Refresh(ctx); err != nil {
			p.logger.Warn("Gallery refresh after submit failed", "error", err)
		}
	}
	return created, nil
}

func (p *Pipeline) fail(id uint64, err error) error {
	reason := domain.UserMessage(err)
	if p.finish(id, Status{State: StateFailed, Reason: reason, Err: err}) {
		p.logger.Warn("Drawing submission failed", "request", id, "error", err)
	}
	return err
}

// finish applies a terminal status if request id is still tracked.
func (p *Pipeline) finish(id uint64, st Status) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tracking != id {
		return false
	}
	p.tracking = 0
	p.status = st
	return true
}

// Status returns the current lifecycle snapshot.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Busy reports whether a submission is in flight; submit controls should be
// disabled while it is true.
func (p *Pipeline) Busy() bool {
	return p.Status().State == StateSubmitting
}

// Ack returns a terminal state to idle and reports the status observed.
func (p *Pipeline) Ack() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.status
	if st.State == StateSucceeded || st.State == StateFailed {
		p.status = Status{State: StateIdle}
	}
	return st
}

// Abandon stops tracking the in-flight submission. Its completion will no
// longer change the status, which returns to idle immediately, and a new
// Submit is accepted while the abandoned upload is still running.
func (p *Pipeline) Abandon() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status.State != StateSubmitting {
		return
	}
	p.tracking = 0
	p.status = Status{State: StateIdle}
}
