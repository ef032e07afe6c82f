package event

// CanvasEvent is one event of an idea canvas question stream (start or
// answer).
type CanvasEvent interface{ isCanvasEvent() }

// QuestionPayload is a question asked by the canvas engine. Slot names the
// decision-tree slot the answer fills.
type QuestionPayload struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Slot    string   `json:"slot,omitempty"`
	Options []string `json:"options,omitempty"`
}

type CanvasProgress struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// CanvasQuestion delivers the next question and the updated canvas.
type CanvasQuestion struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Question  QuestionPayload `json:"question"`
	Canvas    *Node           `json:"canvas,omitempty"`
}

// CanvasSuggestComplete signals the exploration is sufficient. The engine may
// still offer one more optional question.
type CanvasSuggestComplete struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	Message   string           `json:"message,omitempty"`
	Canvas    *Node            `json:"canvas,omitempty"`
	Question  *QuestionPayload `json:"question,omitempty"`
}

type CanvasError struct {
	Type string `json:"type"`
	ErrorPayload
}

func (CanvasProgress) isCanvasEvent()        {}
func (CanvasQuestion) isCanvasEvent()        {}
func (CanvasSuggestComplete) isCanvasEvent() {}
func (CanvasError) isCanvasEvent()           {}

// DecodeCanvas decodes one idea canvas question-stream frame.
func DecodeCanvas(data []byte) (CanvasEvent, error) {
	kind, err := readType(data)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "progress":
		var ev CanvasProgress
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "question":
		var ev CanvasQuestion
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "suggest_complete":
		var ev CanvasSuggestComplete
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "error":
		var ev CanvasError
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, ErrUnknownEvent
	}
}
