package event

// FAQEvent is one event of an FAQ generation stream.
type FAQEvent interface{ isFAQEvent() }

// FAQItem is a single question/answer pair.
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FAQDocument is the generated FAQ deck.
type FAQDocument struct {
	Title string    `json:"title"`
	Items []FAQItem `json:"items"`
}

type FAQProgress struct{ StageProgress }

type FAQComplete struct {
	Type        string      `json:"type"`
	Document    FAQDocument `json:"document"`
	DownloadURL string      `json:"download_url"`
}

type FAQError struct {
	Type string `json:"type"`
	ErrorPayload
}

func (FAQProgress) isFAQEvent() {}
func (FAQComplete) isFAQEvent() {}
func (FAQError) isFAQEvent()    {}

// DecodeFAQ decodes one type-discriminated FAQ frame.
func DecodeFAQ(data []byte) (FAQEvent, error) {
	kind, err := readType(data)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "progress":
		var ev FAQProgress
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		ev.Progress = ClampPercent(ev.Progress)
		return ev, nil
	case "complete":
		var ev FAQComplete
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "error":
		var ev FAQError
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, ErrUnknownEvent
	}
}
