package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownEvent is returned by the decoders when a frame carries a
// discriminant that no variant matches. Consumers drop such frames.
var ErrUnknownEvent = errors.New("unknown event")

// Node is one node of a generated tree (mind maps, idea canvas snapshots).
type Node struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Kind     string `json:"kind,omitempty"`
	Children []Node `json:"children,omitempty"`
}

// Count returns the number of nodes in the subtree rooted at n.
func (n Node) Count() int {
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// Code is a backend error code. The backend sends it either as a string
// ("429") or as a bare number (429).
type Code string

func (c *Code) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*c = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(strings.TrimSpace(s))
		return nil
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return fmt.Errorf("invalid error code %s", raw)
	}
	*c = Code(raw)
	return nil
}

// ErrorPayload is the common body of error-shaped events.
type ErrorPayload struct {
	Message string `json:"error"`
	Code    Code   `json:"code,omitempty"`
}

// StageProgress is the body of type-discriminated progress events.
type StageProgress struct {
	Type     string  `json:"type"`
	Stage    string  `json:"stage,omitempty"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
}

// ClampPercent bounds a reported percentage into [0,100].
func ClampPercent(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

type statusHead struct {
	Status   string   `json:"status"`
	Progress *float64 `json:"progress"`
}

type typeHead struct {
	Type string `json:"type"`
}

func readStatus(data []byte) (statusHead, error) {
	var head statusHead
	if err := json.Unmarshal(data, &head); err != nil {
		return head, fmt.Errorf("decode event head: %w", err)
	}
	head.Status = strings.TrimSpace(head.Status)
	return head, nil
}

func readType(data []byte) (string, error) {
	var head typeHead
	if err := json.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("decode event head: %w", err)
	}
	return strings.TrimSpace(head.Type), nil
}

func decodeBody(data []byte, into any) error {
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode event body: %w", err)
	}
	return nil
}
