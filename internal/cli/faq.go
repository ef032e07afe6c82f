package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"genstudio/internal/feature"
)

func newFAQCmd(root *rootOptions) *cobra.Command {
	var (
		src sourceFlags
		req feature.FAQRequest
	)
	cmd := &cobra.Command{
		Use:   "faq",
		Short: "Generate an FAQ deck from sources",
		Args:  cobra.NoArgs,
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
			creds := a.Credentials(root.apiKey, root.userID)
			hook := a.FAQ()
			stop := follow(ctx, out(cmd), hook.Changed, hook.Snapshot)
			snap := hook.Generate(ctx, req, creds)
			stop()

			res, err := settle(out(cmd), "faq", snap)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "%s (%d questions)\n", res.Document.Title, len(res.Document.Items))
			runID := uuid.NewString()
			paths, err := a.Exporter().SaveFAQ(ctx, runID, *res, creds)
			if err != nil {
				return err
			}
			printSaved(out(cmd), runID, paths)
			return nil
		},
	}
	src.bind(cmd)
	cmd.Flags().IntVar(&req.Count, "count", 0, "number of questions (0 lets the backend decide)")
	cmd.Flags().StringVar(&req.Language, "language", "", "output language")
	cmd.Flags().StringVar(&req.OutputFormat, "format", "", "optional rendered file: pdf or markdown")
	return cmd
}
