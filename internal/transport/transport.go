package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"connectrpc.com/connect"
	"go.uber.org/zap"

	"genstudio/internal/event"
)

const (
	headerAPIKey = "X-API-Key"
	headerUserID = "X-User-ID"
	headerRunID  = "X-Run-ID"
)

// Credentials are the per-session API credentials. They are passed into every
// call; nothing in this module keeps them beyond the call that uses them.
type Credentials struct {
	APIKey string
	UserID string
}

// WithUser returns a copy whose user id is replaced when userID is not empty.
func (c Credentials) WithUser(userID string) Credentials {
	if strings.TrimSpace(userID) != "" {
		c.UserID = strings.TrimSpace(userID)
	}
	return c
}

// Apply sets the credential headers on h.
func (c Credentials) Apply(h http.Header) {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		h.Set(headerAPIKey, key)
	}
	if uid := strings.TrimSpace(c.UserID); uid != "" {
		h.Set(headerUserID, uid)
	}
}

// Call describes one streamed request.
type Call struct {
	RunID       string
	Endpoint    string
	Body        any
	Credentials Credentials
}

func (c Call) headers(h http.Header) {
	c.Credentials.Apply(h)
	if id := strings.TrimSpace(c.RunID); id != "" {
		h.Set(headerRunID, id)
	}
}

// Frame is one server event. Event is the SSE event name and may be empty.
type Frame struct {
	Event string
	Data  []byte
}

// Caller opens a stream and invokes onFrame for each event, sequentially and
// in server order. The returned error is non-nil only for request-level
// failures; application errors arrive as frames.
type Caller interface {
	Stream(ctx context.Context, call Call, onFrame func(Frame)) error
}

// HTTPError reports a non-2xx response to a stream request.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("stream request failed: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("stream request failed: HTTP %d: %s", e.StatusCode, body)
}

// FailureCode maps a request-level error to a short machine code.
func FailureCode(err error) string {
	if err == nil {
		return ""
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return strconv.Itoa(httpErr.StatusCode)
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr.Code().String()
	}
	return "transport"
}

// Stream runs call on caller and decodes every frame with decode. Unknown
// events are dropped silently, malformed payloads are logged and dropped.
func Stream[E any](ctx context.Context, caller Caller, call Call, decode func([]byte) (E, error), onEvent func(E), logger *zap.Logger) error {
	if caller == nil {
		return fmt.Errorf("transport is not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return caller.Stream(ctx, call, func(f Frame) {
		if len(strings.TrimSpace(string(f.Data))) == 0 {
			return
		}
		ev, err := decode(f.Data)
		if errors.Is(err, event.ErrUnknownEvent) {
			logger.Debug("ignoring unrecognized event",
				zap.String("endpoint", call.Endpoint),
				zap.String("run_id", call.RunID),
				zap.String("sse_event", f.Event))
			return
		}
		if err != nil {
			logger.Warn("dropping malformed event",
				zap.String("endpoint", call.Endpoint),
				zap.String("run_id", call.RunID),
				zap.Error(err))
			return
		}
		onEvent(ev)
	})
}

func joinURL(baseURL, endpoint string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	path := strings.TrimSpace(endpoint)
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "ws://") || strings.HasPrefix(path, "wss://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
