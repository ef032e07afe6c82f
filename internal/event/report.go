package event

// ReportEvent is one event of an idea canvas report stream.
type ReportEvent interface{ isReportEvent() }

type ReportProgress struct{ StageProgress }

type ReportComplete struct {
	Type           string `json:"type"`
	ReportMarkdown string `json:"report_markdown"`
	DownloadURL    string `json:"download_url,omitempty"`
}

type ReportError struct {
	Type string `json:"type"`
	ErrorPayload
}

func (ReportProgress) isReportEvent() {}
func (ReportComplete) isReportEvent() {}
func (ReportError) isReportEvent()    {}

// DecodeReport decodes one type-discriminated report frame.
func DecodeReport(data []byte) (ReportEvent, error) {
	kind, err := readType(data)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "progress":
		var ev ReportProgress
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		ev.Progress = ClampPercent(ev.Progress)
		return ev, nil
	case "complete":
		var ev ReportComplete
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "error":
		var ev ReportError
		if err := decodeBody(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, ErrUnknownEvent
	}
}
