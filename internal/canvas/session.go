package canvas

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"genstudio/internal/event"
	"genstudio/internal/feature"
	"genstudio/internal/generation"
	"genstudio/internal/transport"
)

// Hook drives one idea canvas session.
type Hook struct {
	caller transport.Caller
	logger *zap.Logger

	mu        sync.Mutex
	runID     uint64
	cancel    context.CancelFunc
	creds     transport.Credentials
	state     State
	sessionID string
	canvas    Canvas
	current   *Question
	history   []AnsweredQuestion
	answering bool
	message   string
	err       *generation.Failure
	answerErr string
	changed   chan struct{}
}

func New(caller transport.Caller, logger *zap.Logger) *Hook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hook{
		caller:  caller,
		logger:  logger.Named("canvas"),
		state:   StateIdle,
		changed: make(chan struct{}),
	}
}

// ----------------------------------------------------------------------------
// State
// ----------------------------------------------------------------------------

func (h *Hook) Snapshot() Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *Hook) snapshotLocked() Session {
	s := Session{
		State:           h.state,
		SessionID:       h.sessionID,
		Canvas:          h.canvas,
		QuestionHistory: append([]AnsweredQuestion(nil), h.history...),
		IsAnswering:     h.answering,
		Message:         h.message,
		AnswerErr:       h.answerErr,
	}
	s.CanGoBack = h.canGoBackLocked()
	if h.current != nil {
		q := *h.current
		s.CurrentQuestion = &q
	}
	if h.err != nil {
		f := *h.err
		s.Err = &f
	}
	return s
}

func (h *Hook) canGoBackLocked() bool {
	return len(h.history) > 0 && !h.answering &&
		(h.state == StateAnswering || h.state == StateSuggestComplete)
}

func (h *Hook) Changed() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.changed
}

func (h *Hook) notifyLocked() {
	close(h.changed)
	h.changed = make(chan struct{})
}

// Reset cancels any in-flight stream, forgets the credentials and returns
// to idle.
func (h *Hook) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resetLocked()
	h.notifyLocked()
}

func (h *Hook) resetLocked() {
	h.abandonLocked()
	h.creds = transport.Credentials{}
	h.state = StateIdle
	h.sessionID = ""
	h.canvas = Canvas{}
	h.current = nil
	h.history = nil
	h.answering = false
	h.message = ""
	h.err = nil
	h.answerErr = ""
}

func (h *Hook) abandonLocked() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.runID++
}

func (h *Hook) beginLocked(ctx context.Context) (context.Context, uint64) {
	h.abandonLocked()
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	return runCtx, h.runID
}

func (h *Hook) endLocked(id uint64) bool {
	if id != h.runID {
		return false
	}
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	return true
}

func (h *Hook) applyCanvasLocked(root *event.Node) {
	if root != nil {
		h.canvas = Canvas{Root: root}
	}
}

// ----------------------------------------------------------------------------
// Question loop
// ----------------------------------------------------------------------------

// Start opens a new session. It resets first and returns once the first
// question (or a terminal outcome) has arrived.
func (h *Hook) Start(ctx context.Context, req StartRequest, creds transport.Credentials) Session {
	if ctx == nil {
		ctx = context.Background()
	}
	h.mu.Lock()
	h.resetLocked()
	if err := req.Validate(); err != nil {
		h.state = StateError
		h.err = &generation.Failure{Message: err.Error(), Code: generation.CodeInvalidRequest}
		h.notifyLocked()
		s := h.snapshotLocked()
		h.mu.Unlock()
		return s
	}
	h.creds = creds
	h.state = StateStarting
	runCtx, id := h.beginLocked(ctx)
	h.notifyLocked()
	h.mu.Unlock()

	traceID := uuid.NewString()
	log := h.logger.With(zap.String("run_id", traceID))
	log.Info("canvas session starting")

	err := transport.Stream(runCtx, h.caller, transport.Call{
		RunID:       traceID,
		Endpoint:    StartEndpoint,
		Body:        req,
		Credentials: creds,
	}, event.DecodeCanvas, func(ev event.CanvasEvent) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if id != h.runID || h.state != StateStarting {
			return
		}
		switch e := ev.(type) {
		case event.CanvasProgress:
			h.message = e.Message
		case event.CanvasQuestion:
			q := questionOf(e.Question)
			h.sessionID = e.SessionID
			h.applyCanvasLocked(e.Canvas)
			h.current = &q
			h.history = []AnsweredQuestion{}
			h.state = StateAnswering
		case event.CanvasSuggestComplete:
			h.applySuggestLocked(e)
		case event.CanvasError:
			f := failureOf(e.ErrorPayload, "canvas session failed")
			h.err = &f
			h.state = StateError
		}
		h.notifyLocked()
	}, log)

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.endLocked(id) {
		return h.snapshotLocked()
	}
	if h.state == StateStarting {
		f := generation.Failure{Message: "stream ended before the first question", Code: generation.CodeIncompleteStream}
		if err != nil {
			f = generation.FailureFromError(err)
		}
		h.err = &f
		h.state = StateError
		h.notifyLocked()
		log.Warn("canvas session failed to start", zap.String("error", f.Message), zap.String("code", f.Code))
	} else {
		log.Info("canvas session started", zap.String("session_id", h.sessionID), zap.String("state", string(h.state)))
	}
	return h.snapshotLocked()
}

func (h *Hook) applySuggestLocked(e event.CanvasSuggestComplete) {
	if id := strings.TrimSpace(e.SessionID); id != "" {
		h.sessionID = id
	}
	h.applyCanvasLocked(e.Canvas)
	h.message = e.Message
	h.current = nil
	if e.Question != nil {
		q := questionOf(*e.Question)
		h.current = &q
	}
	if h.history == nil {
		h.history = []AnsweredQuestion{}
	}
	h.state = StateSuggestComplete
}

// Answer submits value for the current question and waits for the next
// one. Only misuse returns an error; a failed submission is reported in
// AnswerErr and the question is restored for retry.
func (h *Hook) Answer(ctx context.Context, value, userID string) (Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)

	h.mu.Lock()
	if h.sessionID == "" {
		h.mu.Unlock()
		return h.Snapshot(), ErrNoSession
	}
	if (h.state != StateAnswering && h.state != StateSuggestComplete) || h.current == nil || h.answering {
		s := h.snapshotLocked()
		h.mu.Unlock()
		return s, ErrInvalidState
	}
	if value == "" {
		s := h.snapshotLocked()
		h.mu.Unlock()
		return s, fmt.Errorf("answer is empty: %w", ErrInvalidState)
	}
	entry := AnsweredQuestion{Question: *h.current, Answer: value}
	body := answerBody{
		SessionID:  h.sessionID,
		QuestionID: entry.ID,
		Answer:     value,
		History:    historyOf(h.history),
	}
	h.history = append(h.history, entry)
	h.current = nil
	h.answering = true
	h.answerErr = ""
	creds := h.creds.WithUser(userID)
	runCtx, id := h.beginLocked(ctx)
	h.notifyLocked()
	h.mu.Unlock()

	traceID := uuid.NewString()
	log := h.logger.With(zap.String("run_id", traceID), zap.String("session_id", body.SessionID))
	log.Info("submitting answer", zap.String("question_id", body.QuestionID))

	err := transport.Stream(runCtx, h.caller, transport.Call{
		RunID:       traceID,
		Endpoint:    AnswerEndpoint,
		Body:        body,
		Credentials: creds,
	}, event.DecodeCanvas, func(ev event.CanvasEvent) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if id != h.runID || !h.answering {
			return
		}
		switch e := ev.(type) {
		case event.CanvasProgress:
			h.message = e.Message
		case event.CanvasQuestion:
			q := questionOf(e.Question)
			h.applyCanvasLocked(e.Canvas)
			h.current = &q
			h.answering = false
			h.state = StateAnswering
		case event.CanvasSuggestComplete:
			h.answering = false
			h.applySuggestLocked(e)
		case event.CanvasError:
			msg := strings.TrimSpace(e.Message)
			if msg == "" {
				msg = "answer failed"
			}
			h.restoreLocked(entry, msg)
		}
		h.notifyLocked()
	}, log)

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.endLocked(id) {
		return h.snapshotLocked(), nil
	}
	if h.answering {
		msg := "stream ended before the next question"
		if err != nil {
			msg = err.Error()
		}
		h.restoreLocked(entry, msg)
		h.notifyLocked()
	}
	if h.answerErr != "" {
		log.Warn("answer failed", zap.String("error", h.answerErr))
	}
	return h.snapshotLocked(), nil
}

func (h *Hook) restoreLocked(entry AnsweredQuestion, msg string) {
	if n := len(h.history); n > 0 {
		h.history = h.history[:n-1]
	}
	q := entry.Question
	h.current = &q
	h.answering = false
	h.answerErr = msg
}

func historyOf(history []AnsweredQuestion) []historyEntry {
	out := make([]historyEntry, 0, len(history))
	for _, a := range history {
		out = append(out, historyEntry{QuestionID: a.ID, Question: a.Text, Slot: a.Slot, Answer: a.Answer})
	}
	return out
}

// GoBack restores the most recently answered question as the current one.
// No request is made; the backend receives the truncated history with the
// next answer.
func (h *Hook) GoBack() (Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.canGoBackLocked() {
		return h.snapshotLocked(), ErrInvalidState
	}
	last := h.history[len(h.history)-1]
	h.history = h.history[:len(h.history)-1]
	q := last.Question
	h.current = &q
	h.state = StateAnswering
	h.answerErr = ""
	h.notifyLocked()
	return h.snapshotLocked(), nil
}

// ----------------------------------------------------------------------------
// Side operations
// ----------------------------------------------------------------------------

func reportSpec() generation.Spec[event.ReportEvent, Report] {
	return generation.Spec[event.ReportEvent, Report]{
		IsComplete: func(ev event.ReportEvent) bool {
			_, ok := ev.(event.ReportComplete)
			return ok
		},
		IsError: func(ev event.ReportEvent) bool {
			_, ok := ev.(event.ReportError)
			return ok
		},
		IsProgress: func(ev event.ReportEvent) bool {
			_, ok := ev.(event.ReportProgress)
			return ok
		},
		OnComplete: func(ev event.ReportEvent) Report {
			c, _ := ev.(event.ReportComplete)
			return Report{Markdown: c.ReportMarkdown, DownloadURL: c.DownloadURL}
		},
		ErrorOf: func(ev event.ReportEvent) generation.Failure {
			e, _ := ev.(event.ReportError)
			return failureOf(e.ErrorPayload, "report generation failed")
		},
		ProgressOf: func(ev event.ReportEvent) generation.Progress {
			p, _ := ev.(event.ReportProgress)
			return generation.Progress{Stage: p.Stage, Percent: p.Progress, Message: p.Message}
		},
	}
}

// GenerateReport streams a report for the current session. It may be called
// repeatedly and leaves the question loop untouched.
func (h *Hook) GenerateReport(ctx context.Context, userID string, onProgress func(generation.Progress)) (Report, error) {
	return sideRun(ctx, h, userID, ReportEndpoint, event.DecodeReport, reportSpec(), onProgress)
}

// GenerateMindMap streams a mind map of the current session's canvas.
func (h *Hook) GenerateMindMap(ctx context.Context, userID string, onProgress func(generation.Progress)) (feature.MindMapResult, error) {
	return sideRun(ctx, h, userID, MindMapEndpoint, event.DecodeCanvasMindMap, feature.MindMapSpec(), onProgress)
}

func sideRun[E, R any](ctx context.Context, h *Hook, userID, endpoint string, decode func([]byte) (E, error), spec generation.Spec[E, R], onProgress func(generation.Progress)) (R, error) {
	var zero R
	if ctx == nil {
		ctx = context.Background()
	}
	h.mu.Lock()
	sessionID := h.sessionID
	creds := h.creds.WithUser(userID)
	h.mu.Unlock()
	if sessionID == "" {
		return zero, ErrNoSession
	}

	traceID := uuid.NewString()
	log := h.logger.With(zap.String("run_id", traceID), zap.String("session_id", sessionID), zap.String("endpoint", endpoint))
	tracker := generation.New(spec)
	snap := tracker.Drive(ctx, func(ctx context.Context, onEvent func(E)) error {
		return transport.Stream(ctx, h.caller, transport.Call{
			RunID:       traceID,
			Endpoint:    endpoint,
			Body:        sessionBody{SessionID: sessionID},
			Credentials: creds,
		}, decode, func(ev E) {
			onEvent(ev)
			if onProgress != nil && spec.IsProgress != nil && spec.IsProgress(ev) {
				onProgress(spec.ProgressOf(ev))
			}
		}, log)
	})
	switch {
	case snap.State == generation.StateComplete && snap.Result != nil:
		log.Info("canvas side generation complete")
		return *snap.Result, nil
	case snap.Err != nil:
		log.Warn("canvas side generation failed", zap.String("error", snap.Err.Message))
		return zero, *snap.Err
	default:
		return zero, fmt.Errorf("%s: generation abandoned", endpoint)
	}
}
