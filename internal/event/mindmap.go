package event

// MindMapEvent is one event of a mind map generation stream.
type MindMapEvent interface{ isMindMapEvent() }

type MindMapProgress struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
}

type MindMapComplete struct {
	Status string `json:"status"`
	Tree   Node   `json:"tree"`
}

type MindMapError struct {
	Status string `json:"status"`
	ErrorPayload
}

func (MindMapProgress) isMindMapEvent() {}
func (MindMapComplete) isMindMapEvent() {}
func (MindMapError) isMindMapEvent()    {}

// DecodeMindMap decodes one status-discriminated mind map frame.
func DecodeMindMap(data []byte) (MindMapEvent, error) {
	head, err := readStatus(data)
	if err != nil {
		return nil, err
	}
	switch head.Status {
	case "complete":
		var ev MindMapComplete
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "error":
		var ev MindMapError
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "":
		return nil, ErrUnknownEvent
	}
	if head.Progress == nil {
		return nil, ErrUnknownEvent
	}
	var ev MindMapProgress
	if err := decodeBody(data, &ev); err != nil {
		return nil, err
	}
	ev.Progress = ClampPercent(ev.Progress)
	return ev, nil
}

// DecodeCanvasMindMap decodes the type-discriminated mind map stream served
// for an idea canvas session into the same variants as DecodeMindMap.
func DecodeCanvasMindMap(data []byte) (MindMapEvent, error) {
	kind, err := readType(data)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "progress":
		var body StageProgress
		if err := decodeBody(data, &body); err != nil {
			return nil, err
		}
		return MindMapProgress{
			Status:   firstStage(body.Stage, "generating"),
			Progress: ClampPercent(body.Progress),
			Message:  body.Message,
		}, nil
	case "complete":
		var body struct {
			Tree Node `json:"tree"`
		}
		if err := decodeBody(data, &body); err != nil {
			return nil, err
		}
		return MindMapComplete{Status: "complete", Tree: body.Tree}, nil
	case "error":
		var body ErrorPayload
		if err := decodeBody(data, &body); err != nil {
			return nil, err
		}
		return MindMapError{Status: "error", ErrorPayload: body}, nil
	default:
		return nil, ErrUnknownEvent
	}
}

func firstStage(stage, fallback string) string {
	if stage != "" {
		return stage
	}
	return fallback
}
