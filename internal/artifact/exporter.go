package artifact

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"genstudio/internal/canvas"
	"genstudio/internal/dualoutput"
	"genstudio/internal/event"
	"genstudio/internal/feature"
	"genstudio/internal/transport"
)

// ErrEmptyResult is returned when a result carries nothing to save.
var ErrEmptyResult = errors.New("result has no content to save")

// Exporter writes finished results into a Store under their run id.
// Inline payloads are decoded; download URLs are fetched when no inline
// copy exists.
type Exporter struct {
	store   Store
	fetcher *Fetcher
	logger  *zap.Logger
}

func NewExporter(store Store, fetcher *Fetcher, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, fetcher: fetcher, logger: logger.Named("export")}
}

func (e *Exporter) Store() Store { return e.store }

type documentManifest struct {
	DownloadURL string                 `json:"download_url,omitempty"`
	FilePath    string                 `json:"file_path,omitempty"`
	ExpiresIn   int                    `json:"expires_in,omitempty"`
	CachedAt    string                 `json:"cached_at,omitempty"`
	FromCache   bool                   `json:"from_cache,omitempty"`
	Metadata    event.DocumentMetadata `json:"metadata"`
	Files       []string               `json:"files"`
}

func (e *Exporter) SaveDocument(ctx context.Context, runID string, res feature.DocumentResult, creds transport.Credentials) ([]string, error) {
	w := e.writer(ctx, runID)
	if err := w.payloads("", res.PDFBase64, res.MarkdownContent, res.DownloadURL, res.FilePath, res.Metadata.Format, creds); err != nil {
		return w.paths, err
	}
	manifest := documentManifest{
		DownloadURL: res.DownloadURL,
		FilePath:    res.FilePath,
		ExpiresIn:   res.ExpiresIn,
		CachedAt:    res.CachedAt,
		FromCache:   res.FromCache,
		Metadata:    res.Metadata,
		Files:       append([]string(nil), w.paths...),
	}
	if err := w.json("document.json", manifest); err != nil {
		return w.paths, err
	}
	return w.done("document")
}

// SaveSecondary saves the companion artifact of a combined output under
// secondary/.
func (e *Exporter) SaveSecondary(ctx context.Context, runID string, slot dualoutput.SecondarySlot, creds transport.Credentials) ([]string, error) {
	if slot.IsGenerating {
		return nil, fmt.Errorf("secondary output is still generating")
	}
	w := e.writer(ctx, runID)
	if err := w.payloads("secondary/", slot.PDFBase64, slot.MarkdownContent, slot.DownloadURL, "", slot.Format, creds); err != nil {
		return w.paths, err
	}
	return w.done("secondary")
}

func (e *Exporter) SaveMindMap(ctx context.Context, runID string, res feature.MindMapResult) ([]string, error) {
	w := e.writer(ctx, runID)
	if err := w.json("mindmap.json", res.Tree); err != nil {
		return w.paths, err
	}
	return w.done("mindmap")
}

func (e *Exporter) SavePodcast(ctx context.Context, runID string, res feature.PodcastResult, creds transport.Credentials) ([]string, error) {
	w := e.writer(ctx, runID)
	switch {
	case strings.TrimSpace(res.AudioBase64) != "":
		audio, err := decodeBase64(res.AudioBase64)
		if err != nil {
			return nil, fmt.Errorf("decode podcast audio: %w", err)
		}
		if err := w.put("podcast.mp3", audio); err != nil {
			return w.paths, err
		}
	case strings.TrimSpace(res.DownloadURL) != "":
		if err := w.fetch("podcast.mp3", res.DownloadURL, creds); err != nil {
			return w.paths, err
		}
	}
	if strings.TrimSpace(res.Script) != "" {
		if err := w.put("script.txt", []byte(res.Script)); err != nil {
			return w.paths, err
		}
	}
	return w.done("podcast")
}

func (e *Exporter) SaveFAQ(ctx context.Context, runID string, res feature.FAQResult, creds transport.Credentials) ([]string, error) {
	w := e.writer(ctx, runID)
	if err := w.json("faq.json", res.Document); err != nil {
		return w.paths, err
	}
	if u := strings.TrimSpace(res.DownloadURL); u != "" {
		if err := w.fetch("faq"+extOf(u, ".pdf"), u, creds); err != nil {
			return w.paths, err
		}
	}
	return w.done("faq")
}

func (e *Exporter) SaveReport(ctx context.Context, runID string, rep canvas.Report) ([]string, error) {
	w := e.writer(ctx, runID)
	if strings.TrimSpace(rep.Markdown) != "" {
		if err := w.put("report.md", []byte(rep.Markdown)); err != nil {
			return w.paths, err
		}
	}
	return w.done("report")
}

// ----------------------------------------------------------------------------
// writer
// ----------------------------------------------------------------------------

type writer struct {
	e     *Exporter
	ctx   context.Context
	runID string
	paths []string
}

func (e *Exporter) writer(ctx context.Context, runID string) *writer {
	return &writer{e: e, ctx: ctx, runID: runID}
}

func (w *writer) put(p string, content []byte) error {
	if err := w.e.store.Put(w.ctx, w.runID, p, content); err != nil {
		return fmt.Errorf("save %s: %w", p, err)
	}
	w.paths = append(w.paths, p)
	return nil
}

func (w *writer) json(p string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	return w.put(p, raw)
}

func (w *writer) fetch(p, downloadURL string, creds transport.Credentials) error {
	if w.e.fetcher == nil {
		return fmt.Errorf("no fetcher configured for %s", downloadURL)
	}
	body, err := w.e.fetcher.Fetch(w.ctx, downloadURL, creds)
	if err != nil {
		return err
	}
	return w.put(p, body)
}

// payloads saves the inline pdf and markdown copies, falling back to the
// download URL when neither is present.
func (w *writer) payloads(prefix, pdfBase64, markdown, downloadURL, filePath, format string, creds transport.Credentials) error {
	inline := false
	if strings.TrimSpace(pdfBase64) != "" {
		pdf, err := decodeBase64(pdfBase64)
		if err != nil {
			return fmt.Errorf("decode pdf: %w", err)
		}
		if err := w.put(prefix+"document.pdf", pdf); err != nil {
			return err
		}
		inline = true
	}
	if strings.TrimSpace(markdown) != "" {
		if err := w.put(prefix+"document.md", []byte(markdown)); err != nil {
			return err
		}
		inline = true
	}
	if inline || strings.TrimSpace(downloadURL) == "" {
		return nil
	}
	name := path.Base(strings.TrimSpace(filePath))
	if name == "." || name == "/" || name == "" {
		name = "document" + extOf(downloadURL, formatExt(format))
	}
	return w.fetch(prefix+name, downloadURL, creds)
}

func (w *writer) done(kind string) ([]string, error) {
	if len(w.paths) == 0 {
		return nil, fmt.Errorf("%s: %w", kind, ErrEmptyResult)
	}
	w.e.logger.Info("saved artifacts",
		zap.String("kind", kind),
		zap.String("run_id", w.runID),
		zap.Strings("paths", w.paths))
	return w.paths, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(s)
}

func formatExt(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case feature.FormatMarkdown:
		return ".md"
	case feature.FormatDOCX:
		return ".docx"
	case feature.FormatPPTX:
		return ".pptx"
	}
	return ".pdf"
}

func extOf(downloadURL, fallback string) string {
	u := downloadURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if ext := path.Ext(u); ext != "" && len(ext) <= 6 {
		return ext
	}
	return fallback
}
