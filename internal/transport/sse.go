package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SSECaller posts the call body as JSON and reads a text/event-stream
// response.
type SSECaller struct {
	baseURL string
	client  *http.Client
}

func NewSSECaller(baseURL string, client *http.Client) *SSECaller {
	if client == nil {
		client = http.DefaultClient
	}
	return &SSECaller{baseURL: baseURL, client: client}
}

func (c *SSECaller) Stream(ctx context.Context, call Call, onFrame func(Frame)) error {
	body, err := json.Marshal(call.Body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(c.baseURL, call.Endpoint), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	call.headers(req.Header)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("open stream %s: %w", call.Endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if ct := strings.ToLower(resp.Header.Get("Content-Type")); ct != "" && !strings.HasPrefix(ct, "text/event-stream") {
		return fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		name, data, err := readSSEEvent(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("read stream %s: %w", call.Endpoint, err)
		}
		onFrame(Frame{Event: name, Data: data})
	}
}

// readSSEEvent reads lines up to the next blank line. A final event that is
// not terminated by a blank line is still dispatched at EOF.
func readSSEEvent(reader *bufio.Reader) (string, []byte, error) {
	var name string
	var data []byte
	pending := false
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) && pending {
				return name, data, nil
			}
			return "", nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if !pending {
				if err != nil {
					return "", nil, err
				}
				continue
			}
			return name, data, nil
		}
		switch {
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			pending = true
		case strings.HasPrefix(line, "data:"):
			chunk := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, chunk...)
			pending = true
		}
		if err != nil {
			// last line without newline
			if pending {
				return name, data, nil
			}
			return "", nil, err
		}
	}
}
