package feature

import (
	"context"

	"go.uber.org/zap"

	"genstudio/internal/event"
	"genstudio/internal/generation"
	"genstudio/internal/transport"
)

type MindMapResult struct {
	Tree event.Node
}

type MindMapSnapshot = generation.Snapshot[MindMapResult]

// MindMapSpec is shared with the idea canvas mind map, which streams the
// same variants.
func MindMapSpec() generation.Spec[event.MindMapEvent, MindMapResult] {
	return generation.Spec[event.MindMapEvent, MindMapResult]{
		IsComplete: func(ev event.MindMapEvent) bool {
			_, ok := ev.(event.MindMapComplete)
			return ok
		},
		IsError: func(ev event.MindMapEvent) bool {
			_, ok := ev.(event.MindMapError)
			return ok
		},
		IsProgress: func(ev event.MindMapEvent) bool {
			_, ok := ev.(event.MindMapProgress)
			return ok
		},
		OnComplete: func(ev event.MindMapEvent) MindMapResult {
			c, _ := ev.(event.MindMapComplete)
			return MindMapResult{Tree: c.Tree}
		},
		ErrorOf: func(ev event.MindMapEvent) generation.Failure {
			e, _ := ev.(event.MindMapError)
			return failureOf(e.ErrorPayload)
		},
		ProgressOf: func(ev event.MindMapEvent) generation.Progress {
			p, _ := ev.(event.MindMapProgress)
			return generation.Progress{Stage: p.Status, Percent: p.Progress, Message: p.Message}
		},
	}
}

type MindMap struct {
	h *hook[event.MindMapEvent, MindMapResult]
}

func NewMindMap(caller transport.Caller, logger *zap.Logger) *MindMap {
	return &MindMap{h: newHook("mindmap", MindMapEndpoint, caller, event.DecodeMindMap, MindMapSpec(), logger)}
}

func (m *MindMap) Generate(ctx context.Context, req MindMapRequest, creds transport.Credentials) MindMapSnapshot {
	return m.h.generate(ctx, req, req.Validate(), creds)
}

func (m *MindMap) Reset()                    { m.h.tracker.Reset() }
func (m *MindMap) Snapshot() MindMapSnapshot { return m.h.tracker.Snapshot() }
func (m *MindMap) Changed() <-chan struct{}  { return m.h.tracker.Changed() }
