package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Locator implements ObjectLocator
var _ driven.ObjectLocator = (*Locator)(nil)

// MaxExpiry is the longest presigned URL S3 accepts
const MaxExpiry = 7 * 24 * time.Hour

// Config holds MinIO connection settings
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// Locator presigns GET URLs for document storage locators.
// A locator is either "s3://bucket/key" or a key in the default bucket.
type Locator struct {
	client *minio.Client
	bucket string
}

// NewLocator creates a MinIO-backed locator. No network calls are made.
func NewLocator(cfg Config) (*Locator, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("objectstore endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Locator{client: client, bucket: cfg.Bucket}, nil
}

// PresignedURL returns a time-limited GET URL for locator
func (l *Locator) PresignedURL(ctx context.Context, locator string, expiry time.Duration) (string, error) {
	bucket, key, err := l.split(locator)
	if err != nil {
		return "", err
	}
	if expiry <= 0 || expiry > MaxExpiry {
		expiry = MaxExpiry
	}

	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))

	u, err := l.client.PresignedGetObject(ctx, bucket, key, expiry, params)
	if err != nil {
		return "", fmt.Errorf("%w: presign: %v", domain.ErrServiceUnavailable, err)
	}
	return u.String(), nil
}

func (l *Locator) split(locator string) (bucket, key string, err error) {
	if rest, ok := strings.CutPrefix(locator, "s3://"); ok {
		bucket, key, _ = strings.Cut(rest, "/")
	} else {
		bucket, key = l.bucket, strings.TrimPrefix(locator, "/")
	}
	if bucket == "" || key == "" {
		return "", "", domain.NewValidationError("storage_locator", "does not name an object")
	}
	return bucket, key, nil
}
