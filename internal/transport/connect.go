package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ConnectCaller runs a Connect server-streaming procedure whose request and
// response messages are google.protobuf.Struct. Each received message is
// re-encoded as JSON and delivered as one frame.
type ConnectCaller struct {
	baseURL    string
	httpClient connect.HTTPClient
}

func NewConnectCaller(baseURL string, httpClient *http.Client) *ConnectCaller {
	if httpClient == nil {
		httpClient = defaultConnectHTTPClient(baseURL)
	}
	return &ConnectCaller{baseURL: baseURL, httpClient: httpClient}
}

// defaultConnectHTTPClient speaks HTTP/2 cleartext to http:// backends so
// server streams are not buffered by an HTTP/1.1 proxy path.
func defaultConnectHTTPClient(baseURL string) *http.Client {
	if !strings.HasPrefix(strings.TrimSpace(baseURL), "http://") {
		return http.DefaultClient
	}
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

func (c *ConnectCaller) Stream(ctx context.Context, call Call, onFrame func(Frame)) error {
	msg, err := toStruct(call.Body)
	if err != nil {
		return err
	}
	client := connect.NewClient[structpb.Struct, structpb.Struct](
		c.httpClient,
		joinURL(c.baseURL, call.Endpoint),
		connect.WithProtoJSON(),
	)
	req := connect.NewRequest(msg)
	call.headers(req.Header())

	stream, err := client.CallServerStream(ctx, req)
	if err != nil {
		return fmt.Errorf("open stream %s: %w", call.Endpoint, err)
	}
	defer func() { _ = stream.Close() }()

	for stream.Receive() {
		raw, err := protojson.Marshal(stream.Msg())
		if err != nil {
			return fmt.Errorf("encode stream message: %w", err)
		}
		onFrame(Frame{Data: raw})
	}
	if err := stream.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("read stream %s: %w", call.Endpoint, err)
	}
	return nil
}

func toStruct(body any) (*structpb.Struct, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("request body must be a JSON object: %w", err)
	}
	return msg, nil
}
