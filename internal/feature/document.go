package feature

import (
	"context"

	"go.uber.org/zap"

	"genstudio/internal/event"
	"genstudio/internal/generation"
	"genstudio/internal/transport"
)

// DocumentResult is the buffered outcome of a document generation.
type DocumentResult struct {
	DownloadURL     string
	FilePath        string
	ExpiresIn       int
	Metadata        event.DocumentMetadata
	CachedAt        string
	FromCache       bool
	MarkdownContent string
	PDFBase64       string
}

type DocumentSnapshot = generation.Snapshot[DocumentResult]

// DocumentOutcome classifies a terminal document event. ok is false for
// progress and unknown events.
func DocumentOutcome(ev event.DocumentEvent) (res DocumentResult, fail *generation.Failure, ok bool) {
	switch e := ev.(type) {
	case event.DocumentComplete:
		return DocumentResult{
			DownloadURL:     e.DownloadURL,
			FilePath:        e.FilePath,
			ExpiresIn:       e.ExpiresIn,
			Metadata:        e.Metadata,
			MarkdownContent: e.MarkdownContent,
			PDFBase64:       e.PDFBase64,
		}, nil, true
	case event.DocumentCacheHit:
		return DocumentResult{
			DownloadURL:     e.DownloadURL,
			FilePath:        e.FilePath,
			ExpiresIn:       e.ExpiresIn,
			CachedAt:        e.CachedAt,
			FromCache:       true,
			MarkdownContent: e.MarkdownContent,
			PDFBase64:       e.PDFBase64,
		}, nil, true
	case event.DocumentError:
		f := failureOf(e.ErrorPayload)
		return DocumentResult{}, &f, true
	}
	return DocumentResult{}, nil, false
}

func documentSpec() generation.Spec[event.DocumentEvent, DocumentResult] {
	return generation.Spec[event.DocumentEvent, DocumentResult]{
		IsComplete: func(ev event.DocumentEvent) bool {
			switch ev.(type) {
			case event.DocumentComplete, event.DocumentCacheHit:
				return true
			}
			return false
		},
		IsError: func(ev event.DocumentEvent) bool {
			_, ok := ev.(event.DocumentError)
			return ok
		},
		IsProgress: func(ev event.DocumentEvent) bool {
			_, ok := ev.(event.DocumentProgress)
			return ok
		},
		OnComplete: func(ev event.DocumentEvent) DocumentResult {
			res, _, _ := DocumentOutcome(ev)
			return res
		},
		ErrorOf: func(ev event.DocumentEvent) generation.Failure {
			_, fail, _ := DocumentOutcome(ev)
			if fail == nil {
				return generation.Failure{Message: "generation failed"}
			}
			return *fail
		},
		ProgressOf: func(ev event.DocumentEvent) generation.Progress {
			p, _ := ev.(event.DocumentProgress)
			return generation.Progress{Stage: p.Status, Percent: p.Progress, Message: p.Message}
		},
	}
}

// Document generates one document per call.
type Document struct {
	h *hook[event.DocumentEvent, DocumentResult]
}

func NewDocument(caller transport.Caller, logger *zap.Logger) *Document {
	return &Document{h: newHook("document", DocumentEndpoint, caller, event.DecodeDocument, documentSpec(), logger)}
}

// Generate runs one generation and returns its settled state. It never
// returns an error: failures are recorded in the snapshot.
func (d *Document) Generate(ctx context.Context, req DocumentRequest, creds transport.Credentials) DocumentSnapshot {
	return d.h.generate(ctx, req, req.Validate(), creds)
}

func (d *Document) Reset()                     { d.h.tracker.Reset() }
func (d *Document) Snapshot() DocumentSnapshot { return d.h.tracker.Snapshot() }
func (d *Document) Changed() <-chan struct{}   { return d.h.tracker.Changed() }

// OnChange registers fn to run on every state change of the hook.
func (d *Document) OnChange(fn func()) { d.h.tracker.OnChange(fn) }
