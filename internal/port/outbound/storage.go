package outbound

import (
	"context"
	"time"

	"github.com/uniedit/mediaupload/internal/model"
)

// MediaStoragePort defines the object store operations the broker needs.
type MediaStoragePort interface {
	// PresignPut issues a presigned single-object PUT for key.
	PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (*model.PresignedRequest, error)

	// CreateMultipartUpload opens a multipart session and returns its id.
	CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error)

	// PresignUploadPart issues a presigned PUT for one part of a session.
	PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (*model.PresignedRequest, error)

	// CompleteMultipartUpload finalizes the session with the given parts.
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []model.PartRecord) error

	// AbortMultipartUpload discards the session.
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error

	// ListObjects lists up to maxKeys objects under prefix.
	ListObjects(ctx context.Context, prefix string, maxKeys int32) ([]*model.MediaObject, error)

	// DeleteObject removes the object stored at key.
	DeleteObject(ctx context.Context, key string) error
}

// RateLimiterPort defines rate limiting operations.
type RateLimiterPort interface {
	// Allow checks if a request is allowed within rate limits.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// AllowN checks if N requests are allowed.
	AllowN(ctx context.Context, key string, n int, limit int, window time.Duration) (bool, error)

	// GetRemaining returns remaining requests in window.
	GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}
