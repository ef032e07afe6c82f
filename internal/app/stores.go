package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"genstudio/internal/artifact"
	"genstudio/internal/config"
)

func initArtifactStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (artifact.Store, *sql.DB, error) {
	var (
		origin artifact.Store
		db     *sql.DB
	)
	switch cfg.Artifact.Backend {
	case config.BackendS3:
		s3Cfg := artifact.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
			URLExpiry: cfg.Artifact.URLExpiry,
		}
		if !s3Cfg.Complete() {
			logger.Warn("artifact store: s3 config incomplete, using in-memory fallback")
			origin = artifact.NewMemoryStore()
			break
		}
		s3Store, err := artifact.NewS3Store(s3Cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize artifact s3 store: %w", err)
		}
		logger.Info("artifact store: s3", zap.String("bucket", s3Cfg.Bucket), zap.String("endpoint", s3Cfg.Endpoint))
		origin = s3Store
	case config.BackendPostgres:
		var err error
		db, err = artifact.OpenPostgres(ctx, cfg.Artifact.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize artifact postgres store: %w", err)
		}
		logger.Info("artifact store: postgres")
		origin = artifact.NewPostgresStore(db)
	default:
		origin = artifact.NewMemoryStore()
	}
	return artifact.NewCachedStore(origin, artifact.DefaultCacheConfig()), db, nil
}
