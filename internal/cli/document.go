package cli

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"genstudio/internal/feature"
)

func newDocumentCmd(root *rootOptions) *cobra.Command {
	var (
		src sourceFlags
		req feature.DocumentRequest
	)
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Generate a document from sources",
		Long: `Generate a single document (pdf, markdown, docx or pptx).

Cached results are reported as such and saved the same way.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sources, err := src.build()
			if err != nil {
				return err
			}
			req.Sources = sources

			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := commandContext(cmd)
			hook := a.Document()
			stop := follow(ctx, out(cmd), hook.Changed, hook.Snapshot)
			snap := hook.Generate(ctx, req, a.Credentials(root.apiKey, root.userID))
			stop()

			res, err := settle(out(cmd), "document", snap)
			if err != nil {
				return err
			}
			if res.FromCache {
				noteColor.Fprintf(out(cmd), "served from cache (cached at %s)\n", res.CachedAt)
			}
			runID := uuid.NewString()
			paths, err := a.Exporter().SaveDocument(ctx, runID, *res, a.Credentials(root.apiKey, root.userID))
			if err != nil {
				return err
			}
			printSaved(out(cmd), runID, paths)
			return nil
		},
	}
	src.bind(cmd)
	cmd.Flags().StringVar(&req.OutputFormat, "format", feature.FormatPDF, "output format: pdf, markdown, docx or pptx")
	cmd.Flags().StringVar(&req.Title, "title", "", "document title")
	cmd.Flags().StringVar(&req.Language, "language", "", "output language")
	cmd.Flags().StringVar(&req.Instructions, "instructions", "", "extra instructions for the writer")
	return cmd
}
