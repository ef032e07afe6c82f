package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"genstudio/internal/generation"
)

var (
	okColor    = color.New(color.FgGreen)
	errColor   = color.New(color.FgRed)
	stageColor = color.New(color.FgCyan)
	noteColor  = color.New(color.FgYellow)
)

// follow prints every new progress stage of a hook until stop is called.
// stop blocks until the printer has exited.
func follow[R any](ctx context.Context, w io.Writer, changed func() <-chan struct{}, snapshot func() generation.Snapshot[R]) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		var last generation.Progress
		for {
			ch := changed()
			s := snapshot()
			if s.State == generation.StateGenerating && s.Progress != last && s.Progress.Stage != "" {
				last = s.Progress
				printProgress(w, s.Progress)
			}
			select {
			case <-ch:
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func printProgress(w io.Writer, p generation.Progress) {
	line := fmt.Sprintf("  [%3.0f%%] %s", p.Percent, p.Stage)
	if p.Message != "" {
		line += ": " + p.Message
	}
	stageColor.Fprintln(w, line)
}

// settle reports a finished run and converts a failure into an error.
func settle[R any](w io.Writer, what string, s generation.Snapshot[R]) (*R, error) {
	switch s.State {
	case generation.StateComplete:
		if s.Result != nil {
			okColor.Fprintf(w, "%s ready\n", what)
			return s.Result, nil
		}
	case generation.StateError:
		if s.Err != nil {
			errColor.Fprintf(w, "%s failed: %s\n", what, s.Err.Error())
			return nil, fmt.Errorf("%s failed: %w", what, *s.Err)
		}
	}
	return nil, fmt.Errorf("%s did not finish (state %s)", what, s.State)
}

func printSaved(w io.Writer, runID string, paths []string) {
	fmt.Fprintf(w, "saved to run %s:\n", runID)
	for _, p := range paths {
		fmt.Fprintf(w, "  %s\n", p)
	}
}
