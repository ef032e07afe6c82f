package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"genstudio/internal/feature"
)

func newPodcastCmd(root *rootOptions) *cobra.Command {
	var (
		src sourceFlags
		req feature.PodcastRequest
	)
	cmd := &cobra.Command{
		Use:   "podcast",
		Short: "Generate a podcast episode from sources",
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
			hook := a.Podcast()
			stop := follow(ctx, out(cmd), hook.Changed, hook.Snapshot)
			snap := hook.Generate(ctx, req, creds)
			stop()

			res, err := settle(out(cmd), "podcast", snap)
			if err != nil {
				return err
			}
			if res.DurationSeconds > 0 {
				fmt.Fprintf(out(cmd), "duration: %.0fs\n", res.DurationSeconds)
			}
			runID := uuid.NewString()
			paths, err := a.Exporter().SavePodcast(ctx, runID, *res, creds)
			if err != nil {
				return err
			}
			printSaved(out(cmd), runID, paths)
			return nil
		},
	}
	src.bind(cmd)
	cmd.Flags().StringSliceVar(&req.Voices, "voice", nil, "host voices")
	cmd.Flags().StringVar(&req.Style, "style", "", "conversation style")
	cmd.Flags().StringVar(&req.Language, "language", "", "output language")
	cmd.Flags().IntVar(&req.TargetMinutes, "minutes", 0, "target episode length in minutes")
	return cmd
}
