package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

// WSCaller sends the call body as the first text message and then delivers
// every text message as a frame until the server closes the socket.
type WSCaller struct {
	baseURL string
	dialer  *websocket.Dialer
}

func NewWSCaller(baseURL string, dialer *websocket.Dialer) *WSCaller {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &WSCaller{baseURL: baseURL, dialer: dialer}
}

func (c *WSCaller) Stream(ctx context.Context, call Call, onFrame func(Frame)) error {
	header := http.Header{}
	call.headers(header)

	conn, resp, err := c.dialer.DialContext(ctx, wsURL(joinURL(c.baseURL, call.Endpoint)), header)
	if err != nil {
		if resp != nil {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		return fmt.Errorf("open stream %s: %w", call.Endpoint, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteJSON(call.Body); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("stream %s closed: %d %s", call.Endpoint, closeErr.Code, closeErr.Text)
			}
			return fmt.Errorf("read stream %s: %w", call.Endpoint, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if kind != websocket.TextMessage {
			continue
		}
		onFrame(Frame{Data: data})
	}
}

func wsURL(u string) string {
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}
