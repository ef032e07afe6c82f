package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"genstudio/internal/event"
	"genstudio/internal/feature"
)

func newMindMapCmd(root *rootOptions) *cobra.Command {
	var (
		src sourceFlags
		req feature.MindMapRequest
	)
	cmd := &cobra.Command{
		Use:   "mindmap",
		Short: "Generate a mind map from sources",
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
			hook := a.MindMap()
			stop := follow(ctx, out(cmd), hook.Changed, hook.Snapshot)
			snap := hook.Generate(ctx, req, a.Credentials(root.apiKey, root.userID))
			stop()

			res, err := settle(out(cmd), "mind map", snap)
			if err != nil {
				return err
			}
			printTree(out(cmd), res.Tree, 0)
			runID := uuid.NewString()
			paths, err := a.Exporter().SaveMindMap(ctx, runID, *res)
			if err != nil {
				return err
			}
			printSaved(out(cmd), runID, paths)
			return nil
		},
	}
	src.bind(cmd)
	cmd.Flags().IntVar(&req.MaxDepth, "max-depth", 0, "maximum tree depth (0 lets the backend decide)")
	cmd.Flags().StringVar(&req.Language, "language", "", "output language")
	return cmd
}

func printTree(w io.Writer, n event.Node, depth int) {
	fmt.Fprintf(w, "%s- %s\n", strings.Repeat("  ", depth), n.Label)
	for _, c := range n.Children {
		printTree(w, c, depth+1)
	}
}
