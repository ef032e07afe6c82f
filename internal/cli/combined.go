package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"genstudio/internal/dualoutput"
	"genstudio/internal/feature"
)

func newCombinedCmd(root *rootOptions) *cobra.Command {
	var (
		src  sourceFlags
		kind string
		req  feature.DocumentRequest
	)
	cmd := &cobra.Command{
		Use:   "combined",
		Short: "Generate a primary document and its companion in one go",
		Long: `Generate two outputs from the same sources concurrently.

  article       pdf plus a markdown companion
  presentation  pptx plus a pdf companion
  single        one pdf, no companion

A failed companion never fails the primary document.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			combo, err := dualoutput.ParseCombination(kind)
			if err != nil {
				return err
			}
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
			creds := a.Credentials(root.apiKey, root.userID)
			coord := a.Combined()
			stop := follow(ctx, out(cmd), coord.Changed, func() feature.DocumentSnapshot {
				return coord.Snapshot().Primary
			})
			view := coord.Generate(ctx, combo, req, creds)
			stop()

			res, err := settle(out(cmd), "primary document", view.Primary)
			if err != nil {
				return err
			}
			runID := uuid.NewString()
			paths, err := a.Exporter().SaveDocument(ctx, runID, *res, creds)
			if err != nil {
				return err
			}

			if combo != dualoutput.Single {
				switch sec := view.Secondary; {
				case sec.Err != "":
					noteColor.Fprintf(out(cmd), "companion %s failed: %s\n", sec.Format, sec.Err)
				default:
					more, err := a.Exporter().SaveSecondary(ctx, runID, sec, creds)
					if err != nil {
						noteColor.Fprintf(out(cmd), "companion %s not saved: %v\n", sec.Format, err)
						break
					}
					okColor.Fprintf(out(cmd), "companion %s ready\n", sec.Format)
					paths = append(paths, more...)
				}
			}
			printSaved(out(cmd), runID, paths)
			fmt.Fprintf(out(cmd), "combination: %s\n", view.Combination)
			return nil
		},
	}
	src.bind(cmd)
	cmd.Flags().StringVar(&kind, "kind", string(dualoutput.Article), "article, presentation or single")
	cmd.Flags().StringVar(&req.OutputFormat, "format", feature.FormatPDF, "output format for single")
	cmd.Flags().StringVar(&req.Title, "title", "", "document title")
	cmd.Flags().StringVar(&req.Language, "language", "", "output language")
	cmd.Flags().StringVar(&req.Instructions, "instructions", "", "extra instructions for the writer")
	return cmd
}
