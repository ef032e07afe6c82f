package generation

import (
	"context"
	"errors"
	"sync"

	"genstudio/internal/transport"
)

// Spec parameterizes a Tracker with a feature's event predicates and
// extractors. Predicates are consulted in the order complete, error,
// progress; an event matching none is ignored.
type Spec[E, R any] struct {
	IsComplete func(E) bool
	IsError    func(E) bool
	IsProgress func(E) bool
	OnComplete func(E) R
	ErrorOf    func(E) Failure
	ProgressOf func(E) Progress
}

func (s Spec[E, R]) withDefaults() Spec[E, R] {
	never := func(E) bool { return false }
	if s.IsComplete == nil {
		s.IsComplete = never
	}
	if s.IsError == nil {
		s.IsError = never
	}
	if s.IsProgress == nil {
		s.IsProgress = never
	}
	if s.OnComplete == nil {
		s.OnComplete = func(E) R {
			var zero R
			return zero
		}
	}
	if s.ErrorOf == nil {
		s.ErrorOf = func(E) Failure { return Failure{Message: "generation failed"} }
	}
	if s.ProgressOf == nil {
		s.ProgressOf = func(E) Progress { return InitialProgress }
	}
	return s
}

// Tracker is the state machine of one hook instance. Each SetGenerating
// starts a new run with its own id and context; Reset cancels the current run
// so that events still arriving from it are discarded.
type Tracker[E, R any] struct {
	spec Spec[E, R]

	mu       sync.Mutex
	runID    uint64
	cancel   context.CancelFunc
	state    State
	progress Progress
	result   *R
	err      *Failure
	changed  chan struct{}
	watchers []func()
}

func New[E, R any](spec Spec[E, R]) *Tracker[E, R] {
	return &Tracker[E, R]{
		spec:    spec.withDefaults(),
		state:   StateIdle,
		changed: make(chan struct{}),
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker[E, R]) Snapshot() Snapshot[R] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker[E, R]) snapshotLocked() Snapshot[R] {
	snap := Snapshot[R]{
		RunID:    t.runID,
		State:    t.state,
		Progress: t.progress,
	}
	if t.result != nil {
		r := *t.result
		snap.Result = &r
	}
	if t.err != nil {
		f := *t.err
		snap.Err = &f
	}
	return snap
}

// Changed returns a channel that is closed on the next state change.
func (t *Tracker[E, R]) Changed() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.changed
}

// OnChange registers fn to run on every state change. fn runs with the
// tracker locked and must not call back into it.
func (t *Tracker[E, R]) OnChange(fn func()) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.watchers = append(t.watchers, fn)
}

func (t *Tracker[E, R]) notifyLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
	for _, fn := range t.watchers {
		fn()
	}
}

// Reset returns the tracker to idle and abandons the current run.
func (t *Tracker[E, R]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
	t.notifyLocked()
}

func (t *Tracker[E, R]) resetLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.runID++
	t.state = StateIdle
	t.progress = InitialProgress
	t.result = nil
	t.err = nil
}

// SetGenerating resets the tracker and starts a new run. Nothing from a
// previous run is visible once it returns.
func (t *Tracker[E, R]) SetGenerating(ctx context.Context) *Run[E, R] {
	if ctx == nil {
		ctx = context.Background()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.state = StateGenerating
	t.notifyLocked()
	return &Run[E, R]{t: t, id: t.runID, ctx: runCtx}
}

// HandleEvent folds ev into the current run. It reports whether the event
// changed anything.
func (t *Tracker[E, R]) HandleEvent(ev E) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handleLocked(t.runID, ev)
}

func (t *Tracker[E, R]) handleLocked(runID uint64, ev E) bool {
	if runID != t.runID || t.state != StateGenerating {
		return false
	}
	switch {
	case t.spec.IsComplete(ev):
		r := t.spec.OnComplete(ev)
		t.result = &r
		t.progress = completeProgress
		t.err = nil
		t.state = StateComplete
	case t.spec.IsError(ev):
		f := t.spec.ErrorOf(ev)
		t.err = &f
		t.state = StateError
	case t.spec.IsProgress(ev):
		t.progress = t.spec.ProgressOf(ev)
	default:
		return false
	}
	t.notifyLocked()
	return true
}

// SetError moves the tracker to error. Repeated calls keep the most recent
// failure; a completed run is left untouched.
func (t *Tracker[E, R]) SetError(f Failure) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateComplete {
		return
	}
	t.err = &f
	t.state = StateError
	t.notifyLocked()
}

// Drive runs one generation: SetGenerating, then stream, then terminal
// handling. A stream error becomes the run's failure unless an in-stream
// event already ended the run. A stream that ends cleanly without a terminal
// event fails with CodeIncompleteStream.
func (t *Tracker[E, R]) Drive(ctx context.Context, stream func(ctx context.Context, onEvent func(E)) error) Snapshot[R] {
	run := t.SetGenerating(ctx)
	defer run.release()
	err := stream(run.Context(), func(ev E) { run.HandleEvent(ev) })
	run.Settle(err)
	return t.Snapshot()
}

// Reject starts a run and fails it immediately without opening a stream.
func (t *Tracker[E, R]) Reject(ctx context.Context, f Failure) Snapshot[R] {
	run := t.SetGenerating(ctx)
	defer run.release()
	run.Fail(f)
	return t.Snapshot()
}

// Run is a handle on one generation run. Every method is a no-op once the
// run has been superseded by Reset or a newer SetGenerating.
type Run[E, R any] struct {
	t   *Tracker[E, R]
	id  uint64
	ctx context.Context
}

func (r *Run[E, R]) ID() uint64 { return r.id }

// Context is canceled when the run is reset or superseded.
func (r *Run[E, R]) Context() context.Context { return r.ctx }

// Current reports whether this run is still the tracker's active run.
func (r *Run[E, R]) Current() bool {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()
	return r.id == r.t.runID
}

func (r *Run[E, R]) HandleEvent(ev E) bool {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()
	return r.t.handleLocked(r.id, ev)
}

// Terminal reports whether the run has ended or been superseded.
func (r *Run[E, R]) Terminal() bool {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()
	return r.id != r.t.runID || r.t.state.Terminal()
}

// Fail ends a still-generating run with f.
func (r *Run[E, R]) Fail(f Failure) bool {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()
	if r.id != r.t.runID || r.t.state != StateGenerating {
		return false
	}
	r.t.err = &f
	r.t.state = StateError
	r.t.notifyLocked()
	return true
}

// Settle applies the stream's outcome once it has returned.
func (r *Run[E, R]) Settle(err error) {
	if r.Terminal() {
		return
	}
	if err != nil {
		r.Fail(FailureFromError(err))
		return
	}
	r.Fail(Failure{Message: "stream ended before a result was produced", Code: CodeIncompleteStream})
}

func (r *Run[E, R]) release() {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()
	if r.id == r.t.runID && r.t.cancel != nil {
		r.t.cancel()
		r.t.cancel = nil
	}
}

// FailureFromError converts a request-level error into a Failure.
func FailureFromError(err error) Failure {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Failure{Message: err.Error(), Code: CodeCanceled}
	}
	code := transport.FailureCode(err)
	if code == "" {
		code = CodeTransport
	}
	return Failure{Message: err.Error(), Code: code}
}
