package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"genstudio/internal/artifact"
	"genstudio/internal/canvas"
	"genstudio/internal/config"
	"genstudio/internal/dualoutput"
	"genstudio/internal/feature"
	"genstudio/internal/trace"
	"genstudio/internal/transport"
)

type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	caller   transport.Caller
	recorder *trace.Recorder
	store    artifact.Store
	exporter *artifact.Exporter
	db       *sql.DB
}

// New builds the application. httpClient may be nil.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, httpClient *http.Client) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	opts := transport.Options{
		Kind:       cfg.Transport,
		BaseURL:    cfg.BaseURL,
		HTTPClient: httpClient,
		RateRPS:    cfg.RateRPS,
		RateBurst:  cfg.RateBurst,
	}
	if cfg.TraceDir != "" {
		opts.Wrap = func(base transport.Caller) transport.Caller {
			a.recorder = trace.NewRecorder(base, cfg.TraceDir, logger)
			return a.recorder
		}
	}
	caller, err := transport.New(opts)
	if err != nil {
		return nil, fmt.Errorf("init transport: %w", err)
	}
	a.caller = caller

	store, db, err := initArtifactStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.db = db

	fetcher, err := artifact.NewFetcher(cfg.BaseURL, httpClient, 64)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("init fetcher: %w", err)
	}
	a.exporter = artifact.NewExporter(store, fetcher, logger)

	logger.Info("app initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("transport", cfg.Transport),
		zap.String("artifact_backend", cfg.Artifact.Backend),
		zap.Bool("trace", a.recorder != nil))
	return a, nil
}

func (a *App) Config() *config.Config       { return a.cfg }
func (a *App) Logger() *zap.Logger          { return a.logger }
func (a *App) Caller() transport.Caller     { return a.caller }
func (a *App) Store() artifact.Store        { return a.store }
func (a *App) Exporter() *artifact.Exporter { return a.exporter }
func (a *App) Recorder() *trace.Recorder    { return a.recorder }
func (a *App) Document() *feature.Document  { return feature.NewDocument(a.caller, a.logger) }
func (a *App) MindMap() *feature.MindMap    { return feature.NewMindMap(a.caller, a.logger) }
func (a *App) Podcast() *feature.Podcast    { return feature.NewPodcast(a.caller, a.logger) }
func (a *App) FAQ() *feature.FAQ            { return feature.NewFAQ(a.caller, a.logger) }
func (a *App) Canvas() *canvas.Hook         { return canvas.New(a.caller, a.logger) }
func (a *App) Combined() *dualoutput.Coordinator {
	return dualoutput.New(a.Document(), a.caller, a.logger)
}

// Credentials returns the configured credentials with non-empty overrides
// applied.
func (a *App) Credentials(apiKey, userID string) transport.Credentials {
	creds := transport.Credentials{APIKey: a.cfg.APIKey, UserID: a.cfg.UserID}
	if apiKey != "" {
		creds.APIKey = apiKey
	}
	return creds.WithUser(userID)
}

func (a *App) Close() error {
	_ = a.logger.Sync()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
