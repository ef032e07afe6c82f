package transport

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	KindSSE       = "sse"
	KindConnect   = "connect"
	KindWebSocket = "ws"
)

// Options selects and configures a Caller.
type Options struct {
	Kind       string
	BaseURL    string
	HTTPClient *http.Client
	RateRPS    float64
	RateBurst  int
	// Wrap decorates the base caller before tracing and rate limiting.
	Wrap func(Caller) Caller
}

// New builds the configured caller wrapped with tracing and rate limiting.
func New(opts Options) (Caller, error) {
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	var base Caller
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", KindSSE:
		base = NewSSECaller(baseURL, opts.HTTPClient)
	case KindConnect:
		base = NewConnectCaller(baseURL, opts.HTTPClient)
	case KindWebSocket, "websocket":
		base = NewWSCaller(baseURL, nil)
	default:
		return nil, fmt.Errorf("unknown transport %q", opts.Kind)
	}
	if opts.Wrap != nil {
		base = opts.Wrap(base)
	}
	return NewLimited(NewTraced(base), opts.RateRPS, opts.RateBurst), nil
}
