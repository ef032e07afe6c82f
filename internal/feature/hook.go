package feature

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"genstudio/internal/event"
	"genstudio/internal/generation"
	"genstudio/internal/transport"
)

// Backend endpoints.
const (
	DocumentEndpoint = "/api/document/generate"
	MindMapEndpoint  = "/api/mindmap/generate"
	PodcastEndpoint  = "/api/podcast/generate"
	FAQEndpoint      = "/api/faq/generate"
)

// hook is the shared body of every feature hook: one tracker, one endpoint,
// one transport call per generation.
type hook[E, R any] struct {
	name     string
	endpoint string
	caller   transport.Caller
	decode   func([]byte) (E, error)
	tracker  *generation.Tracker[E, R]
	logger   *zap.Logger
}

func newHook[E, R any](name, endpoint string, caller transport.Caller, decode func([]byte) (E, error), spec generation.Spec[E, R], logger *zap.Logger) *hook[E, R] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &hook[E, R]{
		name:     name,
		endpoint: endpoint,
		caller:   caller,
		decode:   decode,
		tracker:  generation.New(spec),
		logger:   logger.Named(name),
	}
}

func (h *hook[E, R]) generate(ctx context.Context, body any, invalid error, creds transport.Credentials) generation.Snapshot[R] {
	if invalid != nil {
		h.logger.Warn("rejecting invalid request", zap.Error(invalid))
		return h.tracker.Reject(ctx, generation.Failure{Message: invalid.Error(), Code: generation.CodeInvalidRequest})
	}
	runID := uuid.NewString()
	log := h.logger.With(zap.String("run_id", runID))
	log.Info("generation started", zap.String("endpoint", h.endpoint))

	snap := h.tracker.Drive(ctx, func(ctx context.Context, onEvent func(E)) error {
		return transport.Stream(ctx, h.caller, transport.Call{
			RunID:       runID,
			Endpoint:    h.endpoint,
			Body:        body,
			Credentials: creds,
		}, h.decode, onEvent, log)
	})

	switch snap.State {
	case generation.StateComplete:
		log.Info("generation complete")
	case generation.StateError:
		log.Warn("generation failed", zap.String("error", snap.Err.Message), zap.String("code", snap.Err.Code))
	default:
		log.Info("generation abandoned", zap.String("state", string(snap.State)))
	}
	return snap
}

func failureOf(p event.ErrorPayload) generation.Failure {
	msg := strings.TrimSpace(p.Message)
	if msg == "" {
		msg = "generation failed"
	}
	return generation.Failure{Message: msg, Code: string(p.Code)}
}

func stageProgress(p event.StageProgress) generation.Progress {
	stage := strings.TrimSpace(p.Stage)
	if stage == "" {
		stage = "generating"
	}
	return generation.Progress{Stage: stage, Percent: p.Progress, Message: p.Message}
}
