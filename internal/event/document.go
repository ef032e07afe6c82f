package event

// DocumentEvent is one event of a document generation stream.
type DocumentEvent interface{ isDocumentEvent() }

// DocumentMetadata describes a generated document.
type DocumentMetadata struct {
	Title       string `json:"title,omitempty"`
	Format      string `json:"format,omitempty"`
	PageCount   int    `json:"page_count,omitempty"`
	WordCount   int    `json:"word_count,omitempty"`
	SourceCount int    `json:"source_count,omitempty"`
}

// DocumentProgress reports an intermediate pipeline stage. The stage name is
// the status string itself ("parsing", "generating", ...).
type DocumentProgress struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
}

// DocumentComplete carries a freshly generated document.
type DocumentComplete struct {
	Status          string           `json:"status"`
	DownloadURL     string           `json:"download_url"`
	FilePath        string           `json:"file_path"`
	ExpiresIn       int              `json:"expires_in"`
	Metadata        DocumentMetadata `json:"metadata"`
	MarkdownContent string           `json:"markdown_content,omitempty"`
	PDFBase64       string           `json:"pdf_base64,omitempty"`
}

// DocumentCacheHit carries a document served from the backend cache.
type DocumentCacheHit struct {
	Status          string `json:"status"`
	DownloadURL     string `json:"download_url"`
	FilePath        string `json:"file_path"`
	ExpiresIn       int    `json:"expires_in"`
	CachedAt        string `json:"cached_at"`
	MarkdownContent string `json:"markdown_content,omitempty"`
	PDFBase64       string `json:"pdf_base64,omitempty"`
}

// DocumentError is an application-level failure reported in-stream.
type DocumentError struct {
	Status string `json:"status"`
	ErrorPayload
}

func (DocumentProgress) isDocumentEvent() {}
func (DocumentComplete) isDocumentEvent() {}
func (DocumentCacheHit) isDocumentEvent() {}
func (DocumentError) isDocumentEvent()    {}

// DecodeDocument decodes one status-discriminated document frame.
func DecodeDocument(data []byte) (DocumentEvent, error) {
	head, err := readStatus(data)
	if err != nil {
		return nil, err
	}
	switch head.Status {
	case "complete":
		var ev DocumentComplete
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "cache_hit":
		var ev DocumentCacheHit
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "error":
		var ev DocumentError
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "":
		return nil, ErrUnknownEvent
	}
	if head.Progress == nil {
		return nil, ErrUnknownEvent
	}
	var ev DocumentProgress
	if err := decodeBody(data, &ev); err != nil {
		return nil, err
	}
	ev.Progress = ClampPercent(ev.Progress)
	return ev, nil
}
