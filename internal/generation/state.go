package generation

import "fmt"

// State is the lifecycle state of a generation hook.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateComplete   State = "complete"
	StateError      State = "error"
)

// Terminal reports whether no further event may change the run.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError
}

// Progress is the latest reported pipeline stage. It is only meaningful while
// the state is generating.
type Progress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// InitialProgress is the progress of an idle hook.
var InitialProgress = Progress{}

var completeProgress = Progress{Stage: "complete", Percent: 100}

// Failure codes set by the client itself. Backend codes pass through as-is.
const (
	CodeTransport        = "transport"
	CodeCanceled         = "canceled"
	CodeIncompleteStream = "incomplete_stream"
	CodeInvalidRequest   = "invalid_request"
)

// Failure is a run's error message and optional machine code.
type Failure struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (f Failure) Error() string {
	if f.Code == "" {
		return f.Message
	}
	return fmt.Sprintf("%s (%s)", f.Message, f.Code)
}

// Snapshot is an immutable copy of a tracker's state.
type Snapshot[R any] struct {
	RunID    uint64
	State    State
	Progress Progress
	Result   *R
	Err      *Failure
}
