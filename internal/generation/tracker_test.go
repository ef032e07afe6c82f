package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/transport"
)

const (
	kindProgress = iota
	kindComplete
	kindError
	kindUnknown
)

type testEvent struct {
	kind    int
	percent float64
	value   string
}

func testSpec() Spec[testEvent, string] {
	return Spec[testEvent, string]{
		IsComplete: func(e testEvent) bool { return e.kind == kindComplete },
		IsError:    func(e testEvent) bool { return e.kind == kindError },
		IsProgress: func(e testEvent) bool { return e.kind == kindProgress },
		OnComplete: func(e testEvent) string { return e.value },
		ErrorOf:    func(e testEvent) Failure { return Failure{Message: e.value, Code: "E"} },
		ProgressOf: func(e testEvent) Progress {
			return Progress{Stage: "working", Percent: e.percent, Message: e.value}
		},
	}
}

func eventFromKind(i, kind int) testEvent {
	return testEvent{kind: kind, percent: float64(i % 100), value: string(rune('a' + i%26))}
}

func TestHandleEventPriorityAndPinning(t *testing.T) {
	tr := New(testSpec())
	tr.SetGenerating(context.Background())

	assert.True(t, tr.HandleEvent(testEvent{kind: kindProgress, percent: 10}))
	assert.True(t, tr.HandleEvent(testEvent{kind: kindProgress, percent: 60}))
	assert.Equal(t, 60.0, tr.Snapshot().Progress.Percent)

	assert.True(t, tr.HandleEvent(testEvent{kind: kindComplete, value: "doc"}))
	snap := tr.Snapshot()
	assert.Equal(t, StateComplete, snap.State)
	assert.Equal(t, Progress{Stage: "complete", Percent: 100}, snap.Progress)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "doc", *snap.Result)
	assert.Nil(t, snap.Err)
}

func TestOnChangeRunsOnEveryChange(t *testing.T) {
	tr := New(testSpec())
	calls := 0
	tr.OnChange(func() { calls++ })
	tr.OnChange(nil)

	tr.SetGenerating(context.Background())
	require.Positive(t, calls)

	before := calls
	tr.HandleEvent(testEvent{kind: kindProgress, percent: 10})
	assert.Equal(t, before+1, calls)
	tr.HandleEvent(testEvent{kind: kindUnknown})
	assert.Equal(t, before+1, calls)
}

func TestHandleEventIgnoredWhenIdleOrUnknown(t *testing.T) {
	tr := New(testSpec())
	assert.False(t, tr.HandleEvent(testEvent{kind: kindComplete, value: "x"}))
	assert.Equal(t, StateIdle, tr.Snapshot().State)

	tr.SetGenerating(context.Background())
	assert.False(t, tr.HandleEvent(testEvent{kind: kindUnknown}))
	assert.Equal(t, StateGenerating, tr.Snapshot().State)
}

func TestStateMonotonicityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("terminal state is never changed by later events", prop.ForAll(
		func(kinds []int) bool {
			tr := New(testSpec())
			tr.SetGenerating(context.Background())
			var terminal *Snapshot[string]
			for i, k := range kinds {
				tr.HandleEvent(eventFromKind(i, k))
				snap := tr.Snapshot()
				if terminal != nil {
					if snap.State != terminal.State {
						return false
					}
					if (snap.Result == nil) != (terminal.Result == nil) || (snap.Result != nil && *snap.Result != *terminal.Result) {
						return false
					}
					if (snap.Err == nil) != (terminal.Err == nil) || (snap.Err != nil && *snap.Err != *terminal.Err) {
						return false
					}
					continue
				}
				if snap.State.Terminal() {
					terminal = &snap
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(kindProgress, kindUnknown)),
	))

	properties.TestingRun(t)
}

func TestResetIdempotenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("reset always returns to the initial state", prop.ForAll(
		func(kinds []int, resets int) bool {
			tr := New(testSpec())
			tr.SetGenerating(context.Background())
			for i, k := range kinds {
				tr.HandleEvent(eventFromKind(i, k))
			}
			for i := 0; i < resets; i++ {
				tr.Reset()
				snap := tr.Snapshot()
				if snap.State != StateIdle || snap.Progress != InitialProgress || snap.Result != nil || snap.Err != nil {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(kindProgress, kindUnknown)),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}

func TestCompletionPinsProgressProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("complete reports 100 percent", prop.ForAll(
		func(percents []float64) bool {
			tr := New(testSpec())
			tr.SetGenerating(context.Background())
			for _, p := range percents {
				tr.HandleEvent(testEvent{kind: kindProgress, percent: p})
			}
			tr.HandleEvent(testEvent{kind: kindComplete, value: "r"})
			snap := tr.Snapshot()
			return snap.State == StateComplete && snap.Progress.Percent == 100
		},
		gen.SliceOf(gen.Float64Range(0, 99)),
	))

	properties.TestingRun(t)
}

func TestSetGeneratingClearsPreviousRun(t *testing.T) {
	for _, last := range []testEvent{
		{kind: kindComplete, value: "first"},
		{kind: kindError, value: "boom"},
	} {
		tr := New(testSpec())
		tr.SetGenerating(context.Background())
		tr.HandleEvent(testEvent{kind: kindProgress, percent: 40})
		tr.HandleEvent(last)
		require.True(t, tr.Snapshot().State.Terminal())

		changed := tr.Changed()
		tr.SetGenerating(context.Background())
		<-changed
		snap := tr.Snapshot()
		assert.Equal(t, StateGenerating, snap.State)
		assert.Nil(t, snap.Result)
		assert.Nil(t, snap.Err)
		assert.Equal(t, InitialProgress, snap.Progress)
	}
}

func TestStaleRunEventsAreDiscarded(t *testing.T) {
	tr := New(testSpec())
	first := tr.SetGenerating(context.Background())
	second := tr.SetGenerating(context.Background())

	assert.Greater(t, second.ID(), first.ID())
	assert.ErrorIs(t, first.Context().Err(), context.Canceled)
	assert.False(t, first.HandleEvent(testEvent{kind: kindComplete, value: "old"}))
	assert.False(t, first.Fail(Failure{Message: "old"}))
	assert.True(t, first.Terminal())

	assert.True(t, second.HandleEvent(testEvent{kind: kindComplete, value: "new"}))
	assert.Equal(t, "new", *tr.Snapshot().Result)
}

func TestSetErrorLastWriteWins(t *testing.T) {
	tr := New(testSpec())
	tr.SetGenerating(context.Background())
	tr.SetError(Failure{Message: "first"})
	tr.SetError(Failure{Message: "second", Code: "503"})
	snap := tr.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, "second", snap.Err.Message)

	tr.SetGenerating(context.Background())
	tr.HandleEvent(testEvent{kind: kindComplete, value: "ok"})
	tr.SetError(Failure{Message: "late"})
	assert.Equal(t, StateComplete, tr.Snapshot().State)
}

func TestDriveScenarios(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		tr := New(testSpec())
		snap := tr.Drive(context.Background(), func(_ context.Context, onEvent func(testEvent)) error {
			onEvent(testEvent{kind: kindProgress, percent: 10})
			onEvent(testEvent{kind: kindProgress, percent: 60})
			onEvent(testEvent{kind: kindComplete, value: "/f/doc.pdf"})
			return nil
		})
		assert.Equal(t, StateComplete, snap.State)
		assert.Equal(t, 100.0, snap.Progress.Percent)
		assert.Equal(t, "/f/doc.pdf", *snap.Result)
	})

	t.Run("error event", func(t *testing.T) {
		tr := New(testSpec())
		snap := tr.Drive(context.Background(), func(_ context.Context, onEvent func(testEvent)) error {
			onEvent(testEvent{kind: kindError, value: "rate limited"})
			return nil
		})
		assert.Equal(t, StateError, snap.State)
		assert.Equal(t, "rate limited", snap.Err.Message)
		assert.Nil(t, snap.Result)
	})

	t.Run("transport failure", func(t *testing.T) {
		tr := New(testSpec())
		snap := tr.Drive(context.Background(), func(context.Context, func(testEvent)) error {
			return &transport.HTTPError{StatusCode: 502}
		})
		assert.Equal(t, StateError, snap.State)
		assert.Equal(t, "502", snap.Err.Code)
	})

	t.Run("in-stream error wins over rejection", func(t *testing.T) {
		tr := New(testSpec())
		snap := tr.Drive(context.Background(), func(_ context.Context, onEvent func(testEvent)) error {
			onEvent(testEvent{kind: kindError, value: "quota"})
			return errors.New("connection reset")
		})
		assert.Equal(t, "quota", snap.Err.Message)
	})

	t.Run("incomplete stream", func(t *testing.T) {
		tr := New(testSpec())
		snap := tr.Drive(context.Background(), func(_ context.Context, onEvent func(testEvent)) error {
			onEvent(testEvent{kind: kindProgress, percent: 30})
			return nil
		})
		assert.Equal(t, StateError, snap.State)
		assert.Equal(t, CodeIncompleteStream, snap.Err.Code)
	})
}

func TestResetDuringDriveLeavesTrackerIdle(t *testing.T) {
	tr := New(testSpec())
	started := make(chan struct{})
	done := make(chan Snapshot[string], 1)

	go func() {
		done <- tr.Drive(context.Background(), func(ctx context.Context, onEvent func(testEvent)) error {
			close(started)
			<-ctx.Done()
			onEvent(testEvent{kind: kindComplete, value: "late"})
			return ctx.Err()
		})
	}()

	<-started
	tr.Reset()

	select {
	case snap := <-done:
		assert.Equal(t, StateIdle, snap.State)
		assert.Nil(t, snap.Result)
		assert.Nil(t, snap.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("drive did not return after reset")
	}
}

func TestRejectFailsWithoutStream(t *testing.T) {
	tr := New(testSpec())
	snap := tr.Reject(context.Background(), Failure{Message: "no sources", Code: CodeInvalidRequest})
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, CodeInvalidRequest, snap.Err.Code)
}

func TestConcurrentEventsAndSnapshots(t *testing.T) {
	tr := New(testSpec())
	run := tr.SetGenerating(context.Background())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				run.HandleEvent(testEvent{kind: kindProgress, percent: float64(j)})
				_ = tr.Snapshot()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, StateGenerating, tr.Snapshot().State)
}

func TestFailureFromError(t *testing.T) {
	assert.Equal(t, CodeCanceled, FailureFromError(context.Canceled).Code)
	assert.Equal(t, CodeTransport, FailureFromError(errors.New("dial tcp: refused")).Code)
	assert.Equal(t, "rate limited (429)", Failure{Message: "rate limited", Code: "429"}.Error())
}
