package upload

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/uniedit/mediaupload/internal/port/outbound"
)

// SingleTransfer uploads a whole object with one authorized PUT.
type SingleTransfer struct {
	authorizer outbound.UploadAuthorizerPort
	transport  outbound.BlobTransportPort
	bus        outbound.ProgressBusPort
	logger     *zap.Logger
}

// NewSingleTransfer creates a single-shot transfer.
func NewSingleTransfer(
	authorizer outbound.UploadAuthorizerPort,
	transport outbound.BlobTransportPort,
	bus outbound.ProgressBusPort,
	logger *zap.Logger,
) *SingleTransfer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SingleTransfer{
		authorizer: authorizer,
		transport:  transport,
		bus:        bus,
		logger:     logger.Named("single-transfer"),
	}
}

// Upload authorizes and performs the PUT. No retry is attempted.
func (t *SingleTransfer) Upload(ctx context.Context, file File, begin BeginFunc) (string, error) {
	auth, err := t.authorizer.BeginSingle(ctx, file.Name(), file.ContentType())
	if err != nil {
		return "", newAuthorizationError("begin_single", "Failed to get upload URL", err)
	}
	if auth == nil || auth.URL == "" || auth.Key == "" {
		return "", newAuthorizationError("begin_single", "Failed to get upload URL", nil)
	}

	if err := begin(auth.Key); err != nil {
		return "", err
	}

	tracker := newProgressTracker(auth.Key, file.Size(), t.bus)
	tracker.update(0)

	body := io.NewSectionReader(file, 0, file.Size())
	res, err := t.transport.Put(ctx, auth.URL, body, file.Size(), file.ContentType(), tracker.update)
	if err != nil {
		t.logger.Warn("single upload transport failure",
			zap.String("key", auth.Key),
			zap.Error(err),
		)
		return auth.Key, &TransferError{Message: "Network error during upload", Err: err}
	}
	if !isSuccess(res.StatusCode) {
		return auth.Key, &TransferError{
			StatusCode: res.StatusCode,
			Message:    fmt.Sprintf("Upload failed with status %d", res.StatusCode),
		}
	}

	tracker.complete()
	return auth.Key, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
