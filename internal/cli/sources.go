package cli

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"genstudio/internal/feature"
)

type sourceFlags struct {
	files []string
	urls  []string
	texts []string
}

func (s *sourceFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&s.files, "file", nil, "local file to use as a source (repeatable)")
	cmd.Flags().StringArrayVar(&s.urls, "url", nil, "web page to use as a source (repeatable)")
	cmd.Flags().StringArrayVar(&s.texts, "text", nil, "inline text to use as a source (repeatable)")
}

// build reads file sources and returns them in flag order: files, urls,
// then texts.
func (s *sourceFlags) build() ([]feature.Source, error) {
	sources := make([]feature.Source, 0, len(s.files)+len(s.urls)+len(s.texts))
	for _, p := range s.files {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read source %s: %w", p, err)
		}
		sources = append(sources, feature.Source{
			Kind:          feature.SourceFile,
			Name:          filepath.Base(p),
			ContentBase64: base64.StdEncoding.EncodeToString(data),
		})
	}
	for _, u := range s.urls {
		sources = append(sources, feature.Source{Kind: feature.SourceURL, URL: u})
	}
	for _, t := range s.texts {
		sources = append(sources, feature.Source{Kind: feature.SourceText, Text: t})
	}
	return sources, nil
}
