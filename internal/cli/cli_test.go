package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/canvas"
	"genstudio/internal/config"
	"genstudio/internal/feature"
	"genstudio/internal/transport"
)

type sseBackend struct {
	t      *testing.T
	mu     sync.Mutex
	routes map[string][]string
	bodies map[string][]map[string]any
}

func newSSEBackend(t *testing.T) (*sseBackend, *httptest.Server) {
	b := &sseBackend{t: t, routes: map[string][]string{}, bodies: map[string][]map[string]any{}}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, srv
}

// reply queues one response for path; each frame is one SSE data line.
func (b *sseBackend) reply(path string, frames ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[path] = append(b.routes[path], strings.Join(frames, "\n"))
}

func (b *sseBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	b.bodies[r.URL.Path] = append(b.bodies[r.URL.Path], body)
	queue := b.routes[r.URL.Path]
	if len(queue) == 0 {
		b.mu.Unlock()
		http.Error(w, "no reply queued", http.StatusNotFound)
		return
	}
	next := queue[0]
	b.routes[r.URL.Path] = queue[1:]
	b.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	for _, frame := range strings.Split(next, "\n") {
		fmt.Fprintf(w, "data: %s\n\n", frame)
	}
}

func (b *sseBackend) received(path string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.bodies[path]...)
}

func runCLI(t *testing.T, baseURL, stdin string, args ...string) (string, error) {
	t.Helper()
	opts := &rootOptions{loadConfig: func() (*config.Config, error) {
		return &config.Config{
			Env:       "test",
			BaseURL:   baseURL,
			Transport: transport.KindSSE,
			RateBurst: 1,
			APIKey:    "key",
			Artifact:  config.ArtifactConfig{Backend: config.BackendMemory},
		}, nil
	}}
	cmd := newRootCmd(opts)
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestDocumentCommandSavesMarkdown(t *testing.T) {
	backend, srv := newSSEBackend(t)
	backend.reply(feature.DocumentEndpoint,
		`{"status":"generating","progress":50}`,
		`{"status":"complete","download_url":"","file_path":"","expires_in":60,"markdown_content":"# Hello"}`,
	)

	out, err := runCLI(t, srv.URL, "", "document", "--format", "markdown", "--text", "hello world", "--user", "u9")
	require.NoError(t, err)
	assert.Contains(t, out, "document ready")
	assert.Contains(t, out, "document.md")

	bodies := backend.received(feature.DocumentEndpoint)
	require.Len(t, bodies, 1)
	assert.Equal(t, "markdown", bodies[0]["output_format"])
}

func TestDocumentCommandReportsFailure(t *testing.T) {
	backend, srv := newSSEBackend(t)
	backend.reply(feature.DocumentEndpoint, `{"status":"error","error":"quota exceeded","code":"429"}`)

	out, err := runCLI(t, srv.URL, "", "document", "--text", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Contains(t, out, "document failed")
}

func TestDocumentCommandReadsFileSources(t *testing.T) {
	backend, srv := newSSEBackend(t)
	backend.reply(feature.DocumentEndpoint, `{"status":"complete","markdown_content":"ok"}`)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	_, err := runCLI(t, srv.URL, "", "document", "--format", "markdown", "--file", path)
	require.NoError(t, err)

	bodies := backend.received(feature.DocumentEndpoint)
	require.Len(t, bodies, 1)
	sources, ok := bodies[0]["sources"].([]any)
	require.True(t, ok)
	require.Len(t, sources, 1)
	src := sources[0].(map[string]any)
	assert.Equal(t, "file", src["type"])
	assert.Equal(t, "notes.txt", src["name"])
	assert.Equal(t, "YWJj", src["content_base64"])
}

func TestDocumentCommandMissingFile(t *testing.T) {
	_, err := runCLI(t, "http://localhost:1", "", "document", "--file", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestMindMapCommandPrintsTree(t *testing.T) {
	backend, srv := newSSEBackend(t)
	backend.reply(feature.MindMapEndpoint,
		`{"status":"complete","tree":{"id":"r","label":"Go","children":[{"id":"c","label":"channels"}]}}`)

	out, err := runCLI(t, srv.URL, "", "mindmap", "--text", "go")
	require.NoError(t, err)
	assert.Contains(t, out, "- Go\n")
	assert.Contains(t, out, "  - channels\n")
	assert.Contains(t, out, "mindmap.json")
}

func TestCombinedCommandSingle(t *testing.T) {
	backend, srv := newSSEBackend(t)
	backend.reply(feature.DocumentEndpoint, `{"status":"complete","pdf_base64":"JVBERg=="}`)

	_, err := runCLI(t, srv.URL, "", "combined", "--kind", "nonsense", "--text", "x")
	require.Error(t, err)

	out, err := runCLI(t, srv.URL, "", "combined", "--kind", "single", "--text", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "document.pdf")
	assert.Contains(t, out, "combination: single")
}

func TestCanvasCommandLoop(t *testing.T) {
	backend, srv := newSSEBackend(t)
	backend.reply(canvas.StartEndpoint,
		`{"type":"question","session_id":"s1","question":{"id":"q1","text":"Who is it for?","options":["devs","ops"]},"canvas":{"id":"root","label":"idea"}}`)
	backend.reply(canvas.AnswerEndpoint,
		`{"type":"question","session_id":"s1","question":{"id":"q2","text":"Why now?"}}`)
	backend.reply(canvas.AnswerEndpoint,
		`{"type":"suggest_complete","session_id":"s1","message":"looks complete"}`)
	backend.reply(canvas.ReportEndpoint,
		`{"type":"progress","stage":"writing","progress":50}`,
		`{"type":"complete","report_markdown":"# Report"}`)

	stdin := strings.Join([]string{"1", "back", "ops", "report", "quit"}, "\n") + "\n"
	out, err := runCLI(t, srv.URL, stdin, "canvas", "--topic", "cli tool")
	require.NoError(t, err)

	assert.Contains(t, out, "Q1. Who is it for?")
	assert.Contains(t, out, "1) devs")
	assert.Contains(t, out, "Q2. Why now?")
	assert.Contains(t, out, "looks complete")
	assert.Contains(t, out, "report ready")
	assert.Contains(t, out, "report.md")

	answers := backend.received(canvas.AnswerEndpoint)
	require.Len(t, answers, 2)
	assert.Equal(t, "devs", answers[0]["answer"])
	assert.Equal(t, "ops", answers[1]["answer"])
	assert.Equal(t, "q1", answers[1]["question_id"])
	assert.Empty(t, answers[1]["history"])
}

func TestCanvasCommandStartFailure(t *testing.T) {
	backend, srv := newSSEBackend(t)
	backend.reply(canvas.StartEndpoint, `{"type":"error","error":"engine offline","code":"503"}`)

	out, err := runCLI(t, srv.URL, "", "canvas", "--topic", "x")
	require.Error(t, err)
	assert.Contains(t, out, "engine offline")
}

func TestTransportFlagOverridesConfig(t *testing.T) {
	_, err := runCLI(t, "http://localhost:1", "", "--transport", "pigeon", "document", "--text", "x")
	assert.Error(t, err)
}
