package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"familyphotos/internal/config"
)

// Open builds the object store selected by STORAGE_BACKEND
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ObjectStore, error) {
	switch strings.ToLower(cfg.StorageBackend) {
	case "s3":
		return NewS3(ctx, S3Config{
			Region:          cfg.StorageRegion,
			Bucket:          cfg.StorageBucket,
			AccessKeyID:     cfg.StorageAccessKey,
			SecretAccessKey: cfg.StorageSecretKey,
			Endpoint:        cfg.StorageEndpoint,
		})
	case "minio":
		store, err := NewMinIO(MinIOConfig{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			UseSSL:    cfg.StorageUseSSL,
			Bucket:    cfg.StorageBucket,
			Region:    cfg.StorageRegion,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "local", "":
		return NewLocal(cfg.StorageLocalDir, cfg.PublicBaseURL, cfg.AuthSecret, logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}
