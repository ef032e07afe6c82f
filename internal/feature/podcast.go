package feature

import (
	"context"

	"go.uber.org/zap"

	"genstudio/internal/event"
	"genstudio/internal/generation"
	"genstudio/internal/transport"
)

type PodcastResult struct {
	AudioBase64     string
	Script          string
	DurationSeconds float64
	DownloadURL     string
}

type PodcastSnapshot = generation.Snapshot[PodcastResult]

func podcastSpec() generation.Spec[event.PodcastEvent, PodcastResult] {
	return generation.Spec[event.PodcastEvent, PodcastResult]{
		IsComplete: func(ev event.PodcastEvent) bool {
			_, ok := ev.(event.PodcastComplete)
			return ok
		},
		IsError: func(ev event.PodcastEvent) bool {
			_, ok := ev.(event.PodcastError)
			return ok
		},
		IsProgress: func(ev event.PodcastEvent) bool {
			_, ok := ev.(event.PodcastProgress)
			return ok
		},
		OnComplete: func(ev event.PodcastEvent) PodcastResult {
			c, _ := ev.(event.PodcastComplete)
			return PodcastResult{
				AudioBase64:     c.AudioBase64,
				Script:          c.Script,
				DurationSeconds: c.DurationSeconds,
				DownloadURL:     c.DownloadURL,
			}
		},
		ErrorOf: func(ev event.PodcastEvent) generation.Failure {
			e, _ := ev.(event.PodcastError)
			return failureOf(e.ErrorPayload)
		},
		ProgressOf: func(ev event.PodcastEvent) generation.Progress {
			p, _ := ev.(event.PodcastProgress)
			return stageProgress(p.StageProgress)
		},
	}
}

type Podcast struct {
	h *hook[event.PodcastEvent, PodcastResult]
}

func NewPodcast(caller transport.Caller, logger *zap.Logger) *Podcast {
	return &Podcast{h: newHook("podcast", PodcastEndpoint, caller, event.DecodePodcast, podcastSpec(), logger)}
}

func (p *Podcast) Generate(ctx context.Context, req PodcastRequest, creds transport.Credentials) PodcastSnapshot {
	return p.h.generate(ctx, req, req.Validate(), creds)
}

func (p *Podcast) Reset()                    { p.h.tracker.Reset() }
func (p *Podcast) Snapshot() PodcastSnapshot { return p.h.tracker.Snapshot() }
func (p *Podcast) Changed() <-chan struct{}  { return p.h.tracker.Changed() }
