package event

// PodcastEvent is one event of a podcast generation stream.
type PodcastEvent interface{ isPodcastEvent() }

type PodcastProgress struct{ StageProgress }

type PodcastComplete struct {
	Type            string  `json:"type"`
	AudioBase64     string  `json:"audio_base64"`
	Script          string  `json:"script"`
	DurationSeconds float64 `json:"duration_seconds"`
	DownloadURL     string  `json:"download_url,omitempty"`
}

type PodcastError struct {
	Type string `json:"type"`
	ErrorPayload
}

func (PodcastProgress) isPodcastEvent() {}
func (PodcastComplete) isPodcastEvent() {}
func (PodcastError) isPodcastEvent()    {}

// DecodePodcast decodes one type-discriminated podcast frame.
func DecodePodcast(data []byte) (PodcastEvent, error) {
	kind, err := readType(data)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "progress":
		var ev PodcastProgress
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		ev.Progress = ClampPercent(ev.Progress)
		return ev, nil
	case "complete":
		var ev PodcastComplete
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "error":
		var ev PodcastError
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, ErrUnknownEvent
	}
}
