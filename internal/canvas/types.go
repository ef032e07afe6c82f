package canvas

import (
	"errors"
	"strings"

	"genstudio/internal/event"
	"genstudio/internal/feature"
	"genstudio/internal/generation"
)

var (
	// ErrNoSession is returned by operations that need a backend session
	// before Start has produced one.
	ErrNoSession = errors.New("no idea canvas session")
	// ErrInvalidState is returned when an operation is not valid in the
	// session's current state.
	ErrInvalidState = errors.New("operation not valid in current canvas state")
)

type State string

const (
	StateIdle            State = "idle"
	StateStarting        State = "starting"
	StateAnswering       State = "answering"
	StateSuggestComplete State = "suggest_complete"
	StateError           State = "error"
)

const (
	StartEndpoint   = "/api/canvas/start"
	AnswerEndpoint  = "/api/canvas/answer"
	ReportEndpoint  = "/api/canvas/report"
	MindMapEndpoint = "/api/canvas/mindmap"
)

type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Slot    string   `json:"slot,omitempty"`
	Options []string `json:"options,omitempty"`
}

func questionOf(p event.QuestionPayload) Question {
	return Question{
		ID:      p.ID,
		Text:    p.Text,
		Slot:    p.Slot,
		Options: append([]string(nil), p.Options...),
	}
}

func failureOf(p event.ErrorPayload, fallback string) generation.Failure {
	msg := strings.TrimSpace(p.Message)
	if msg == "" {
		msg = fallback
	}
	return generation.Failure{Message: msg, Code: string(p.Code)}
}

type AnsweredQuestion struct {
	Question
	Answer string
}

// Canvas is the latest decision-tree snapshot sent by the backend.
type Canvas struct {
	Root *event.Node
}

type StartRequest struct {
	Topic    string           `json:"topic"`
	Sources  []feature.Source `json:"sources,omitempty"`
	Language string           `json:"language,omitempty"`
}

func (r StartRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" && len(r.Sources) == 0 {
		return errors.New("a topic or at least one source is required")
	}
	return nil
}

// Session is a snapshot of the canvas hook.
type Session struct {
	State           State
	SessionID       string
	Canvas          Canvas
	CurrentQuestion *Question
	QuestionHistory []AnsweredQuestion
	CanGoBack       bool
	IsAnswering     bool
	Message         string
	Err             *generation.Failure
	// AnswerErr is the last failed answer. The session stays usable.
	AnswerErr string
}

// Report is the generated exploration report.
type Report struct {
	Markdown    string
	DownloadURL string
}

type historyEntry struct {
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
	Slot       string `json:"slot,omitempty"`
	Answer     string `json:"answer"`
}

type answerBody struct {
	SessionID  string         `json:"session_id"`
	QuestionID string         `json:"question_id"`
	Answer     string         `json:"answer"`
	History    []historyEntry `json:"history"`
}

type sessionBody struct {
	SessionID string `json:"session_id"`
}
