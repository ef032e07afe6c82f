package feature

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoSources is returned by Validate when a request carries no source.
var ErrNoSources = errors.New("at least one source is required")

// SourceKind is how a source is supplied to the backend.
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceURL  SourceKind = "url"
	SourceText SourceKind = "text"
)

// Source is one input to a generation. File sources carry their content
// inline as base64; upload mechanics live outside this module.
type Source struct {
	Kind          SourceKind `json:"type"`
	Name          string     `json:"name,omitempty"`
	URL           string     `json:"url,omitempty"`
	Text          string     `json:"text,omitempty"`
	ContentBase64 string     `json:"content_base64,omitempty"`
}

func (s Source) validate() error {
	switch s.Kind {
	case SourceFile:
		if strings.TrimSpace(s.ContentBase64) == "" {
			return fmt.Errorf("file source %q has no content", s.Name)
		}
	case SourceURL:
		u := strings.TrimSpace(s.URL)
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("url source %q must be http(s)", s.URL)
		}
	case SourceText:
		if strings.TrimSpace(s.Text) == "" {
			return fmt.Errorf("text source is empty")
		}
	default:
		return fmt.Errorf("unknown source kind %q", s.Kind)
	}
	return nil
}

func validateSources(sources []Source) error {
	if len(sources) == 0 {
		return ErrNoSources
	}
	for i, s := range sources {
		if err := s.validate(); err != nil {
			return fmt.Errorf("source %d: %w", i, err)
		}
	}
	return nil
}

// Document output formats.
const (
	FormatPDF      = "pdf"
	FormatMarkdown = "markdown"
	FormatDOCX     = "docx"
	FormatPPTX     = "pptx"
)

func knownFormat(f string, allowed ...string) bool {
	for _, a := range allowed {
		if f == a {
			return true
		}
	}
	return false
}

// DocumentRequest asks for one generated document.
type DocumentRequest struct {
	Sources      []Source `json:"sources"`
	OutputFormat string   `json:"output_format"`
	Title        string   `json:"title,omitempty"`
	Language     string   `json:"language,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

// WithFormat returns a copy of r with a different output format.
func (r DocumentRequest) WithFormat(format string) DocumentRequest {
	r.Sources = append([]Source(nil), r.Sources...)
	r.OutputFormat = format
	return r
}

func (r DocumentRequest) Validate() error {
	if err := validateSources(r.Sources); err != nil {
		return err
	}
	if !knownFormat(r.OutputFormat, FormatPDF, FormatMarkdown, FormatDOCX, FormatPPTX) {
		return fmt.Errorf("unsupported output format %q", r.OutputFormat)
	}
	return nil
}

type MindMapRequest struct {
	Sources  []Source `json:"sources"`
	MaxDepth int      `json:"max_depth,omitempty"`
	Language string   `json:"language,omitempty"`
}

func (r MindMapRequest) Validate() error {
	if err := validateSources(r.Sources); err != nil {
		return err
	}
	if r.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative")
	}
	return nil
}

type PodcastRequest struct {
	Sources       []Source `json:"sources"`
	Voices        []string `json:"voices,omitempty"`
	Style         string   `json:"style,omitempty"`
	Language      string   `json:"language,omitempty"`
	TargetMinutes int      `json:"target_minutes,omitempty"`
}

func (r PodcastRequest) Validate() error {
	if err := validateSources(r.Sources); err != nil {
		return err
	}
	if r.TargetMinutes < 0 {
		return fmt.Errorf("target minutes must not be negative")
	}
	return nil
}

type FAQRequest struct {
	Sources      []Source `json:"sources"`
	Count        int      `json:"count,omitempty"`
	Language     string   `json:"language,omitempty"`
	OutputFormat string   `json:"output_format,omitempty"`
}

func (r FAQRequest) Validate() error {
	if err := validateSources(r.Sources); err != nil {
		return err
	}
	if r.Count < 0 {
		return fmt.Errorf("count must not be negative")
	}
	if r.OutputFormat != "" && !knownFormat(r.OutputFormat, FormatPDF, FormatMarkdown) {
		return fmt.Errorf("unsupported output format %q", r.OutputFormat)
	}
	return nil
}
