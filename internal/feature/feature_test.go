package feature

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"genstudio/internal/generation"
	"genstudio/internal/transport"
)

// scriptedCaller replays fixed frames and records every call it receives.
type scriptedCaller struct {
	mu     sync.Mutex
	frames []string
	err    error
	calls  []transport.Call
}

func (c *scriptedCaller) Stream(_ context.Context, call transport.Call, onFrame func(transport.Frame)) error {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	frames := append([]string(nil), c.frames...)
	err := c.err
	c.mu.Unlock()
	for _, f := range frames {
		onFrame(transport.Frame{Data: []byte(f)})
	}
	return err
}

func (c *scriptedCaller) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func textSources() []Source {
	return []Source{{Kind: SourceText, Text: "Go concurrency patterns"}}
}

func TestDocumentGenerateComplete(t *testing.T) {
	caller := &scriptedCaller{frames: []string{
		`{"status":"parsing","progress":10}`,
		`{"status":"generating","progress":60}`,
		`{"status":"complete","download_url":"/f/doc.pdf","file_path":"x","expires_in":3600,"metadata":{"title":"T"}}`,
	}}
	doc := NewDocument(caller, zap.NewNop())

	snap := doc.Generate(context.Background(), DocumentRequest{Sources: textSources(), OutputFormat: FormatPDF},
		transport.Credentials{APIKey: "k", UserID: "u1"})

	assert.Equal(t, generation.StateComplete, snap.State)
	assert.Equal(t, 100.0, snap.Progress.Percent)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "/f/doc.pdf", snap.Result.DownloadURL)
	assert.Equal(t, "T", snap.Result.Metadata.Title)
	assert.Equal(t, 3600, snap.Result.ExpiresIn)

	require.Equal(t, 1, caller.callCount())
	call := caller.calls[0]
	assert.Equal(t, DocumentEndpoint, call.Endpoint)
	assert.Equal(t, "k", call.Credentials.APIKey)
	assert.NotEmpty(t, call.RunID)
}

func TestDocumentCacheHit(t *testing.T) {
	caller := &scriptedCaller{frames: []string{
		`{"status":"cache_hit","download_url":"/f/c.pdf","file_path":"c","expires_in":60,"cached_at":"2026-01-02T03:04:05Z"}`,
	}}
	doc := NewDocument(caller, nil)
	snap := doc.Generate(context.Background(), DocumentRequest{Sources: textSources(), OutputFormat: FormatPDF}, transport.Credentials{})

	require.Equal(t, generation.StateComplete, snap.State)
	assert.True(t, snap.Result.FromCache)
	assert.Equal(t, "2026-01-02T03:04:05Z", snap.Result.CachedAt)
	assert.Equal(t, 100.0, snap.Progress.Percent)
}

func TestDocumentErrorEvent(t *testing.T) {
	caller := &scriptedCaller{frames: []string{`{"status":"error","error":"rate limited","code":"429"}`}}
	doc := NewDocument(caller, nil)
	snap := doc.Generate(context.Background(), DocumentRequest{Sources: textSources(), OutputFormat: FormatPDF}, transport.Credentials{})

	assert.Equal(t, generation.StateError, snap.State)
	require.NotNil(t, snap.Err)
	assert.Equal(t, "rate limited", snap.Err.Message)
	assert.Equal(t, "429", snap.Err.Code)
	assert.Nil(t, snap.Result)
}

func TestInvalidRequestOpensNoStream(t *testing.T) {
	caller := &scriptedCaller{}
	doc := NewDocument(caller, nil)

	snap := doc.Generate(context.Background(), DocumentRequest{OutputFormat: FormatPDF}, transport.Credentials{})
	assert.Equal(t, generation.StateError, snap.State)
	assert.Equal(t, generation.CodeInvalidRequest, snap.Err.Code)

	snap = doc.Generate(context.Background(), DocumentRequest{Sources: textSources(), OutputFormat: "gif"}, transport.Credentials{})
	assert.Equal(t, generation.CodeInvalidRequest, snap.Err.Code)
	assert.Equal(t, 0, caller.callCount())
}

func TestSecondGenerateClearsPreviousOutcome(t *testing.T) {
	caller := &scriptedCaller{frames: []string{`{"status":"error","error":"boom"}`}}
	doc := NewDocument(caller, nil)
	req := DocumentRequest{Sources: textSources(), OutputFormat: FormatPDF}
	require.Equal(t, generation.StateError, doc.Generate(context.Background(), req, transport.Credentials{}).State)

	changed := doc.Changed()
	done := make(chan DocumentSnapshot, 1)
	blocking := &blockingCaller{release: make(chan struct{}), started: make(chan struct{})}
	doc.h.caller = blocking
	go func() { done <- doc.Generate(context.Background(), req, transport.Credentials{}) }()

	<-blocking.started
	<-changed
	snap := doc.Snapshot()
	assert.Equal(t, generation.StateGenerating, snap.State)
	assert.Nil(t, snap.Err)
	assert.Nil(t, snap.Result)

	close(blocking.release)
	assert.Equal(t, generation.CodeIncompleteStream, (<-done).Err.Code)
}

type blockingCaller struct {
	started chan struct{}
	release chan struct{}
}

func (c *blockingCaller) Stream(ctx context.Context, _ transport.Call, _ func(transport.Frame)) error {
	close(c.started)
	select {
	case <-c.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestResetAbandonsInFlightGeneration(t *testing.T) {
	blocking := &blockingCaller{release: make(chan struct{}), started: make(chan struct{})}
	mm := NewMindMap(blocking, nil)
	done := make(chan MindMapSnapshot, 1)
	go func() {
		done <- mm.Generate(context.Background(), MindMapRequest{Sources: textSources()}, transport.Credentials{})
	}()
	<-blocking.started
	mm.Reset()

	snap := <-done
	assert.Equal(t, generation.StateIdle, snap.State)
	assert.Nil(t, snap.Err)
}

func TestMindMapPodcastFAQ(t *testing.T) {
	t.Run("mindmap", func(t *testing.T) {
		caller := &scriptedCaller{frames: []string{
			`{"status":"analyzing","progress":20}`,
			`{"status":"complete","tree":{"id":"root","label":"Go","children":[{"id":"c1","label":"Channels"}]}}`,
		}}
		snap := NewMindMap(caller, nil).Generate(context.Background(), MindMapRequest{Sources: textSources()}, transport.Credentials{})
		require.Equal(t, generation.StateComplete, snap.State)
		assert.Equal(t, 2, snap.Result.Tree.Count())
	})

	t.Run("podcast", func(t *testing.T) {
		caller := &scriptedCaller{frames: []string{
			`{"type":"progress","stage":"script","progress":30}`,
			`{"type":"progress","stage":"tts","progress":80}`,
			`{"type":"complete","audio_base64":"AAAA","script":"Hello","duration_seconds":42.5}`,
		}}
		snap := NewPodcast(caller, nil).Generate(context.Background(), PodcastRequest{Sources: textSources()}, transport.Credentials{})
		require.Equal(t, generation.StateComplete, snap.State)
		assert.Equal(t, "AAAA", snap.Result.AudioBase64)
		assert.Equal(t, 42.5, snap.Result.DurationSeconds)
		assert.Equal(t, "complete", snap.Progress.Stage)
	})

	t.Run("faq", func(t *testing.T) {
		caller := &scriptedCaller{frames: []string{
			`{"type":"progress","progress":50}`,
			`{"type":"complete","document":{"title":"FAQ","items":[{"question":"Q","answer":"A"}]},"download_url":"/f/faq.pdf"}`,
		}}
		snap := NewFAQ(caller, nil).Generate(context.Background(), FAQRequest{Sources: textSources()}, transport.Credentials{})
		require.Equal(t, generation.StateComplete, snap.State)
		assert.Len(t, snap.Result.Document.Items, 1)
		assert.Equal(t, "/f/faq.pdf", snap.Result.DownloadURL)
	})

	t.Run("podcast error", func(t *testing.T) {
		caller := &scriptedCaller{frames: []string{`{"type":"error","error":"tts unavailable","code":503}`}}
		snap := NewPodcast(caller, nil).Generate(context.Background(), PodcastRequest{Sources: textSources()}, transport.Credentials{})
		require.Equal(t, generation.StateError, snap.State)
		assert.Equal(t, "503", snap.Err.Code)
	})
}

func TestTransportFailureBecomesError(t *testing.T) {
	caller := &scriptedCaller{err: &transport.HTTPError{StatusCode: http.StatusUnauthorized, Body: "bad key"}}
	snap := NewFAQ(caller, nil).Generate(context.Background(), FAQRequest{Sources: textSources()}, transport.Credentials{})
	assert.Equal(t, generation.StateError, snap.State)
	assert.Equal(t, "401", snap.Err.Code)
}

func TestDocumentOverSSE(t *testing.T) {
	var got DocumentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DocumentEndpoint, r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"status\":\"parsing\",\"progress\":10}\n\n")
		fmt.Fprint(w, "data: {\"status\":\"mystery_stage\"}\n\n")
		fmt.Fprint(w, "data: {\"status\":\"complete\",\"download_url\":\"/f/doc.md\",\"file_path\":\"doc.md\",\"expires_in\":10,\"metadata\":{\"format\":\"markdown\"},\"markdown_content\":\"# T\"}\n\n")
	}))
	defer srv.Close()

	doc := NewDocument(transport.NewSSECaller(srv.URL, srv.Client()), nil)
	snap := doc.Generate(context.Background(), DocumentRequest{Sources: textSources(), OutputFormat: FormatMarkdown}, transport.Credentials{})

	require.Equal(t, generation.StateComplete, snap.State)
	assert.Equal(t, "# T", snap.Result.MarkdownContent)
	assert.Equal(t, FormatMarkdown, got.OutputFormat)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, SourceText, got.Sources[0].Kind)
}

func TestRequestValidation(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"no sources", MindMapRequest{}.Validate()},
		{"bad url", MindMapRequest{Sources: []Source{{Kind: SourceURL, URL: "ftp://x"}}}.Validate()},
		{"empty file", PodcastRequest{Sources: []Source{{Kind: SourceFile, Name: "a.pdf"}}}.Validate()},
		{"unknown kind", FAQRequest{Sources: []Source{{Kind: "audio"}}}.Validate()},
		{"faq format", FAQRequest{Sources: textSources(), OutputFormat: FormatPPTX}.Validate()},
		{"negative minutes", PodcastRequest{Sources: textSources(), TargetMinutes: -1}.Validate()},
	}
	for _, tc := range cases {
		assert.Error(t, tc.err, tc.name)
	}
	assert.ErrorIs(t, DocumentRequest{OutputFormat: FormatPDF}.Validate(), ErrNoSources)
	assert.NoError(t, DocumentRequest{
		Sources:      []Source{{Kind: SourceURL, URL: "https://go.dev"}, {Kind: SourceFile, Name: "a.pdf", ContentBase64: "JVBERi0="}},
		OutputFormat: FormatPPTX,
	}.Validate())
}

func TestWithFormatCopies(t *testing.T) {
	req := DocumentRequest{Sources: textSources(), OutputFormat: FormatPDF, Title: "T"}
	md := req.WithFormat(FormatMarkdown)
	md.Sources[0].Text = "changed"
	assert.Equal(t, FormatPDF, req.OutputFormat)
	assert.Equal(t, FormatMarkdown, md.OutputFormat)
	assert.Equal(t, "T", md.Title)
	assert.Equal(t, "Go concurrency patterns", req.Sources[0].Text)
}
