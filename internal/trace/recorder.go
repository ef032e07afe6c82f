package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"genstudio/internal/transport"
)

var runIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Entry is one line of a run trace.
type Entry struct {
	Timestamp string          `json:"timestamp"`
	RunID     string          `json:"run_id"`
	Endpoint  string          `json:"endpoint"`
	Stage     string          `json:"stage"`
	Event     string          `json:"event,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

const (
	StageRequest = "request"
	StageFrame   = "frame"
	StageSettled = "settled"
)

// Recorder is a transport.Caller decorator that appends the request, every
// frame and the outcome of each call to <dir>/<run id>.jsonl.
type Recorder struct {
	next   transport.Caller
	dir    string
	logger *zap.Logger
	mu     sync.Mutex
	now    func() time.Time
}

func DefaultDir() string {
	return filepath.Join("tmp", "run_traces")
}

func NewRecorder(next transport.Caller, dir string, logger *zap.Logger) *Recorder {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = DefaultDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{next: next, dir: dir, logger: logger.Named("trace"), now: time.Now}
}

func sanitizeRunID(runID string) string {
	id := runIDSanitizer.ReplaceAllString(strings.TrimSpace(runID), "_")
	if id == "" {
		return "unknown"
	}
	return id
}

func (r *Recorder) filePath(runID string) string {
	return filepath.Join(r.dir, sanitizeRunID(runID)+".jsonl")
}

func (r *Recorder) Stream(ctx context.Context, call transport.Call, onFrame func(transport.Frame)) error {
	r.append(call, Entry{Stage: StageRequest, Data: rawJSON(call.Body)})
	err := r.next.Stream(ctx, call, func(f transport.Frame) {
		r.append(call, Entry{Stage: StageFrame, Event: f.Event, Data: frameData(f.Data)})
		onFrame(f)
	})
	settled := Entry{Stage: StageSettled}
	if err != nil {
		settled.Error = err.Error()
	}
	r.append(call, settled)
	return err
}

func rawJSON(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

func frameData(data []byte) json.RawMessage {
	if json.Valid(data) {
		return append(json.RawMessage(nil), data...)
	}
	raw, _ := json.Marshal(string(data))
	return raw
}

func (r *Recorder) append(call transport.Call, e Entry) {
	if strings.TrimSpace(call.RunID) == "" {
		return
	}
	e.Timestamp = r.now().UTC().Format(time.RFC3339Nano)
	e.RunID = strings.TrimSpace(call.RunID)
	e.Endpoint = call.Endpoint
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	raw = append(raw, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		r.logger.Warn("create trace dir", zap.Error(err))
		return
	}
	f, err := os.OpenFile(r.filePath(call.RunID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		r.logger.Warn("open trace file", zap.String("run_id", call.RunID), zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := f.Write(raw); err != nil {
		r.logger.Warn("write trace", zap.String("run_id", call.RunID), zap.Error(err))
	}
}

// Read returns the recorded entries of a run in write order.
func (r *Recorder) Read(runID string) ([]Entry, error) {
	f, err := os.Open(r.filePath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	out := make([]Entry, 0, 32)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan trace file: %w", err)
	}
	return out, nil
}
