package outbound

import (
	"context"
	"io"

	"github.com/uniedit/mediaupload/internal/model"
)

// UploadAuthorizerPort is the storage-authorization collaborator used by the
// upload orchestrator. Every URL it returns is short-lived and single-purpose.
type UploadAuthorizerPort interface {
	// BeginSingle authorizes one PUT of a whole object.
	BeginSingle(ctx context.Context, fileName, contentType string) (*model.SingleAuthorization, error)

	// BeginMultipart opens a multipart session.
	BeginMultipart(ctx context.Context, fileName, contentType string) (*model.MultipartSession, error)

	// AuthorizePart issues a URL for a single part number.
	// It must be called once per part; URLs are not reusable across parts.
	AuthorizePart(ctx context.Context, key, sessionID string, partNumber int32) (*model.PartAuthorization, error)

	// FinalizeMultipart completes the session with the ordered part list.
	FinalizeMultipart(ctx context.Context, key, sessionID string, parts []model.PartRecord) error

	// AbortMultipart discards an open session and its uploaded parts.
	AbortMultipart(ctx context.Context, key, sessionID string) error

	// ListMedia lists objects already present in the store.
	ListMedia(ctx context.Context) ([]*model.MediaObject, error)
}

// PutResult is the outcome of a raw PUT against a presigned URL.
type PutResult struct {
	StatusCode int
	ETag       string
}

// BlobTransportPort performs raw byte transfers against presigned URLs.
type BlobTransportPort interface {
	// Put streams size bytes from body to url. onBytes is invoked with the
	// cumulative number of bytes written so far. contentType may be empty.
	// A non-nil error means a transport failure; HTTP status codes are
	// reported through PutResult.
	Put(ctx context.Context, url string, body io.Reader, size int64, contentType string, onBytes func(sent int64)) (*PutResult, error)
}

// ProgressBusPort is a publish/subscribe channel for upload progress.
type ProgressBusPort interface {
	// Publish delivers the event to current subscribers. No replay.
	Publish(event model.ProgressEvent)

	// Subscribe registers handler for uploadID, or for every upload when
	// uploadID is "*". The returned function removes the subscription.
	Subscribe(uploadID string, handler func(model.ProgressEvent)) (unsubscribe func())
}
