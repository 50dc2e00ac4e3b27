package broker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/uniedit/mediaupload/internal/model"
	"github.com/uniedit/mediaupload/internal/port/inbound"
	"github.com/uniedit/mediaupload/internal/port/outbound"
)

// MetricsRecorder records issued authorizations.
type MetricsRecorder interface {
	RecordAuthorization(operation, status string)
}

type noopMetrics struct{}

func (noopMetrics) RecordAuthorization(string, string) {}

// Domain brokers short-lived storage authorizations. It never touches the
// uploaded bytes.
type Domain struct {
	storage outbound.MediaStoragePort
	keys    *KeyGenerator
	metrics MetricsRecorder
	config  *Config
	logger  *zap.Logger
}

// NewDomain creates a new broker domain.
func NewDomain(
	storage outbound.MediaStoragePort,
	metrics MetricsRecorder,
	config *Config,
	logger *zap.Logger,
) *Domain {
	if config == nil {
		config = DefaultConfig()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Domain{
		storage: storage,
		keys:    NewKeyGenerator(config.KeyRandomSuffix),
		metrics: metrics,
		config:  config,
		logger:  logger.Named("broker"),
	}
}

// IssueUploadURL presigns a single-shot PUT for a new object.
func (d *Domain) IssueUploadURL(ctx context.Context, in *inbound.UploadURLInput) (*inbound.UploadURLOutput, error) {
	if in.FileName == "" || in.FileType == "" {
		return nil, fmt.Errorf("%w: fileName and fileType are required", ErrInvalidInput)
	}
	if err := d.checkContentType(in.FileType); err != nil {
		return nil, err
	}

	key, err := d.keys.Generate(in.FileName)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	req, err := d.storage.PresignPut(ctx, key, in.FileType, d.config.PresignExpiry)
	if err != nil {
		d.metrics.RecordAuthorization("upload_url", "error")
		return nil, fmt.Errorf("presign put: %w", err)
	}

	d.metrics.RecordAuthorization("upload_url", "ok")
	d.logger.Debug("issued upload url",
		zap.String("key", key),
		zap.String("content_type", in.FileType),
		zap.Time("expires_at", req.ExpiresAt),
	)
	return &inbound.UploadURLOutput{UploadURL: req.URL, Key: key}, nil
}

// StartMultipart opens a multipart session for a new object.
func (d *Domain) StartMultipart(ctx context.Context, in *inbound.MultipartStartInput) (*inbound.MultipartStartOutput, error) {
	if in.FileName == "" || in.FileType == "" {
		return nil, fmt.Errorf("%w: fileName and fileType are required", ErrInvalidInput)
	}
	if err := d.checkContentType(in.FileType); err != nil {
		return nil, err
	}

	key, err := d.keys.Generate(in.FileName)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	uploadID, err := d.storage.CreateMultipartUpload(ctx, key, in.FileType)
	if err != nil {
		d.metrics.RecordAuthorization("multipart_start", "error")
		return nil, fmt.Errorf("create multipart upload: %w", err)
	}
	if uploadID == "" {
		d.metrics.RecordAuthorization("multipart_start", "error")
		return nil, ErrMissingUploadID
	}

	d.metrics.RecordAuthorization("multipart_start", "ok")
	d.logger.Info("multipart session started",
		zap.String("key", key),
		zap.String("upload_id", uploadID),
	)
	return &inbound.MultipartStartOutput{UploadID: uploadID, Key: key}, nil
}

// IssuePartURL presigns one part of an open session.
func (d *Domain) IssuePartURL(ctx context.Context, in *inbound.PartURLInput) (*inbound.PartURLOutput, error) {
	if in.Key == "" || in.UploadID == "" || in.PartNumber < 1 {
		return nil, fmt.Errorf("%w: key, uploadId and partNumber are required", ErrInvalidInput)
	}

	req, err := d.storage.PresignUploadPart(ctx, in.Key, in.UploadID, in.PartNumber, d.config.PresignExpiry)
	if err != nil {
		d.metrics.RecordAuthorization("part_url", "error")
		return nil, fmt.Errorf("presign upload part: %w", err)
	}

	d.metrics.RecordAuthorization("part_url", "ok")
	return &inbound.PartURLOutput{URL: req.URL}, nil
}

// CompleteMultipart finalizes a session. Parts are submitted in ascending
// part-number order.
func (d *Domain) CompleteMultipart(ctx context.Context, in *inbound.MultipartCompleteInput) error {
	if in.Key == "" || in.UploadID == "" || len(in.Parts) == 0 {
		return fmt.Errorf("%w: key, uploadId and parts are required", ErrInvalidInput)
	}
	parts, err := orderParts(in.Parts)
	if err != nil {
		return err
	}

	if err := d.storage.CompleteMultipartUpload(ctx, in.Key, in.UploadID, parts); err != nil {
		d.metrics.RecordAuthorization("multipart_complete", "error")
		return fmt.Errorf("complete multipart upload: %w", err)
	}

	d.metrics.RecordAuthorization("multipart_complete", "ok")
	d.logger.Info("multipart session completed",
		zap.String("key", in.Key),
		zap.Int("parts", len(parts)),
	)
	return nil
}

// AbortMultipart discards a session and its uploaded parts.
func (d *Domain) AbortMultipart(ctx context.Context, in *inbound.MultipartAbortInput) error {
	if in.Key == "" || in.UploadID == "" {
		return fmt.Errorf("%w: key and uploadId are required", ErrInvalidInput)
	}

	if err := d.storage.AbortMultipartUpload(ctx, in.Key, in.UploadID); err != nil {
		d.metrics.RecordAuthorization("multipart_abort", "error")
		return fmt.Errorf("abort multipart upload: %w", err)
	}

	d.metrics.RecordAuthorization("multipart_abort", "ok")
	d.logger.Info("multipart session aborted", zap.String("key", in.Key))
	return nil
}

// ListMedia lists stored objects with their public URLs.
func (d *Domain) ListMedia(ctx context.Context) (*inbound.MediaListOutput, error) {
	objects, err := d.storage.ListObjects(ctx, d.config.ListPrefix, d.config.ListMaxKeys)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}

	items := make([]*model.MediaObject, 0, len(objects))
	for _, obj := range objects {
		if obj == nil || obj.Key == "" {
			continue
		}
		item := *obj
		item.URL = d.PublicURL(obj.Key)
		items = append(items, &item)
	}
	return &inbound.MediaListOutput{Items: items}, nil
}

// DeleteMedia deletes one stored object.
func (d *Domain) DeleteMedia(ctx context.Context, in *inbound.MediaDeleteInput) error {
	if in.Key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidInput)
	}
	if err := d.storage.DeleteObject(ctx, in.Key); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return err
		}
		return fmt.Errorf("delete object: %w", err)
	}
	d.logger.Info("media deleted", zap.String("key", in.Key))
	return nil
}

// PublicURL returns the public URL of key.
func (d *Domain) PublicURL(key string) string {
	return strings.TrimRight(d.config.PublicBaseURL, "/") + "/" + url.PathEscape(key)
}

func (d *Domain) checkContentType(contentType string) error {
	if len(d.config.AllowedContentTypes) == 0 {
		return nil
	}
	for _, allowed := range d.config.AllowedContentTypes {
		if strings.EqualFold(allowed, contentType) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrContentTypeNotAllowed, contentType)
}

// orderParts returns parts sorted by part number, rejecting duplicates,
// non-positive numbers and empty tags.
func orderParts(parts []model.PartRecord) ([]model.PartRecord, error) {
	sorted := make([]model.PartRecord, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	for i, p := range sorted {
		if p.PartNumber < 1 || p.ETag == "" {
			return nil, fmt.Errorf("%w: part %d", ErrInvalidPartList, p.PartNumber)
		}
		if i > 0 && sorted[i-1].PartNumber == p.PartNumber {
			return nil, fmt.Errorf("%w: duplicate part %d", ErrInvalidPartList, p.PartNumber)
		}
	}
	return sorted, nil
}

// Compile-time check
var _ inbound.BrokerDomain = (*Domain)(nil)
