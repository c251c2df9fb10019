package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig configures a MinIO server connection
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
}

// MinIO stores objects on a MinIO server, creating the bucket on first use
type MinIO struct {
	client *minio.Client
	bucket string
	region string

	mu      sync.Mutex
	ensured bool
}

// NewMinIO creates a MinIO store
func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIO{client: client, bucket: strings.TrimSpace(cfg.Bucket), region: cfg.Region}, nil
}

// EnsureBucket creates the bucket when it does not exist yet. A failed
// attempt is retried on the next call.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	if m.bucket == "" {
		return fmt.Errorf("minio bucket is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ensured {
		return nil
	}

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return &NetworkError{Op: "ensure bucket", Key: m.bucket, Err: err}
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
			return &NetworkError{Op: "ensure bucket", Key: m.bucket, Err: err}
		}
	}
	m.ensured = true
	return nil
}

// Put uploads body with PutObject
func (m *MinIO) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	if err := m.EnsureBucket(ctx); err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	_, err := m.client.PutObject(ctx, m.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", &UploadError{Key: key, Err: m.classify("put", key, err)}
	}
	return key, nil
}

// SignedURL presigns a GET valid for ttl
func (m *MinIO) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = SignedURLTTL
	}
	presigned, err := m.client.PresignedGetObject(ctx, m.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}
	return presigned.String(), nil
}

// Delete removes key
func (m *MinIO) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return m.classify("delete", key, err)
	}
	return nil
}

func (m *MinIO) classify(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "AccessDenied":
		return &AccessDeniedError{Key: key, Reason: resp.Message}
	case resp.Code == "" || resp.StatusCode == 0:
		return &NetworkError{Op: op, Key: key, Err: err}
	default:
		return fmt.Errorf("%s %s: %w", op, key, err)
	}
}
