package driven

import (
	"context"
	"time"
)

// ObjectLocator resolves document storage locators to download URLs (MinIO/S3).
// Document bytes are never read by the core.
type ObjectLocator interface {
	// PresignedURL returns a time-limited GET URL for locator
	PresignedURL(ctx context.Context, locator string, expiry time.Duration) (string, error)
}
