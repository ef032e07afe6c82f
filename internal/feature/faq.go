package feature

import (
	"context"

	"go.uber.org/zap"

	"genstudio/internal/event"
	"genstudio/internal/generation"
	"genstudio/internal/transport"
)

type FAQResult struct {
	Document    event.FAQDocument
	DownloadURL string
}

type FAQSnapshot = generation.Snapshot[FAQResult]

func faqSpec() generation.Spec[event.FAQEvent, FAQResult] {
	return generation.Spec[event.FAQEvent, FAQResult]{
		IsComplete: func(ev event.FAQEvent) bool {
			_, ok := ev.(event.FAQComplete)
			return ok
		},
		IsError: func(ev event.FAQEvent) bool {
			_, ok := ev.(event.FAQError)
			return ok
		},
		IsProgress: func(ev event.FAQEvent) bool {
			_, ok := ev.(event.FAQProgress)
			return ok
		},
		OnComplete: func(ev event.FAQEvent) FAQResult {
			c, _ := ev.(event.FAQComplete)
			return FAQResult{Document: c.Document, DownloadURL: c.DownloadURL}
		},
		ErrorOf: func(ev event.FAQEvent) generation.Failure {
			e, _ := ev.(event.FAQError)
			return failureOf(e.ErrorPayload)
		},
		ProgressOf: func(ev event.FAQEvent) generation.Progress {
			p, _ := ev.(event.FAQProgress)
			return stageProgress(p.StageProgress)
		},
	}
}

type FAQ struct {
	h *hook[event.FAQEvent, FAQResult]
}

func NewFAQ(caller transport.Caller, logger *zap.Logger) *FAQ {
	return &FAQ{h: newHook("faq", FAQEndpoint, caller, event.DecodeFAQ, faqSpec(), logger)}
}

func (f *FAQ) Generate(ctx context.Context, req FAQRequest, creds transport.Credentials) FAQSnapshot {
	return f.h.generate(ctx, req, req.Validate(), creds)
}

func (f *FAQ) Reset()                   { f.h.tracker.Reset() }
func (f *FAQ) Snapshot() FAQSnapshot    { return f.h.tracker.Snapshot() }
func (f *FAQ) Changed() <-chan struct{} { return f.h.tracker.Changed() }
