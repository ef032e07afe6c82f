package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"genstudio/internal/app"
	"genstudio/internal/config"
	"genstudio/internal/logger"
)

type rootOptions struct {
	apiKey    string
	userID    string
	baseURL   string
	transport string
	verbose   bool

	loadConfig func() (*config.Config, error)
}

// Execute runs the root command until it finishes or the process receives
// SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{loadConfig: config.Load})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "genstudio",
		Short: "Generate documents, mind maps, podcasts and FAQs from your sources",
		Long: `genstudio drives a streaming generation backend.

Every command opens one stream, prints progress as it arrives and saves the
result to the configured artifact store.

Quick Start:
  genstudio document --format pdf --file notes.md
  genstudio combined --kind article --url https://example.com/post
  genstudio canvas --topic "weekend hackathon idea"`,
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.apiKey, "api-key", "", "API key (overrides STUDIO_API_KEY)")
	flags.StringVar(&opts.userID, "user", "", "user id (overrides STUDIO_USER_ID)")
	flags.StringVar(&opts.baseURL, "base-url", "", "backend base URL (overrides STUDIO_BASE_URL)")
	flags.StringVar(&opts.transport, "transport", "", "stream transport: sse, connect or ws")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to the console")

	root.AddCommand(newDocumentCmd(opts))
	root.AddCommand(newMindMapCmd(opts))
	root.AddCommand(newPodcastCmd(opts))
	root.AddCommand(newFAQCmd(opts))
	root.AddCommand(newCombinedCmd(opts))
	root.AddCommand(newCanvasCmd(opts))
	return root
}

// open loads configuration, applies flag overrides and builds the app.
func (o *rootOptions) open(cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(o.baseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(o.transport); v != "" {
		cfg.Transport = strings.ToLower(v)
	}
	log := logger.New(logger.Options{
		FilePath:   cfg.LogFile,
		Production: cfg.IsProduction(),
		Verbose:    o.verbose,
		Console:    cmd.ErrOrStderr(),
	})
	return app.New(cmd.Context(), cfg, log, nil)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
