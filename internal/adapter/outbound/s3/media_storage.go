package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/uniedit/mediaupload/internal/domain/broker"
	"github.com/uniedit/mediaupload/internal/model"
	"github.com/uniedit/mediaupload/internal/port/outbound"
)

// API is the subset of the S3 client used by the media storage adapter.
type API interface {
	s3.ListObjectsV2APIClient
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner is the subset of the S3 presign client used by the adapter.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignUploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var (
	_ API       = (*s3.Client)(nil)
	_ Presigner = (*s3.PresignClient)(nil)
)

// MediaStorageAdapter implements MediaStoragePort on an S3 bucket.
type MediaStorageAdapter struct {
	client    API
	presigner Presigner
	bucket    string
	now       func() time.Time
}

// NewMediaStorageAdapter creates a media storage adapter backed by client.
func NewMediaStorageAdapter(client *s3.Client, bucket string) *MediaStorageAdapter {
	return NewMediaStorageAdapterWith(client, s3.NewPresignClient(client), bucket)
}

// NewMediaStorageAdapterWith creates an adapter from explicit collaborators.
func NewMediaStorageAdapterWith(client API, presigner Presigner, bucket string) *MediaStorageAdapter {
	return &MediaStorageAdapter{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
		now:       time.Now,
	}
}

// PresignPut presigns a single PUT of key with the given content type.
func (a *MediaStorageAdapter) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (*model.PresignedRequest, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := a.presigner.PresignPutObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	return &model.PresignedRequest{
		URL:       req.URL,
		Method:    req.Method,
		ExpiresAt: a.now().Add(expires),
	}, nil
}

// CreateMultipartUpload opens a multipart upload and returns its id.
func (a *MediaStorageAdapter) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	out, err := a.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", fmt.Errorf("create multipart upload: %w", err)
	}
	return aws.ToString(out.UploadId), nil
}

// PresignUploadPart presigns the PUT of one part.
func (a *MediaStorageAdapter) PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (*model.PresignedRequest, error) {
	req, err := a.presigner.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(a.bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return nil, fmt.Errorf("presign upload part: %w", err)
	}

	return &model.PresignedRequest{
		URL:       req.URL,
		Method:    req.Method,
		ExpiresAt: a.now().Add(expires),
	}, nil
}

// CompleteMultipartUpload assembles the object from parts.
func (a *MediaStorageAdapter) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []model.PartRecord) error {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		}
	}

	_, err := a.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return fmt.Errorf("complete multipart upload: %w", err)
	}
	return nil
}

// AbortMultipartUpload discards an open multipart upload.
func (a *MediaStorageAdapter) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := a.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(a.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return fmt.Errorf("abort multipart upload: %w", err)
	}
	return nil
}

// ListObjects lists up to maxKeys objects under prefix. Zero means no limit.
func (a *MediaStorageAdapter) ListObjects(ctx context.Context, prefix string, maxKeys int32) ([]*model.MediaObject, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if maxKeys > 0 {
		input.MaxKeys = aws.Int32(maxKeys)
	}

	var objects []*model.MediaObject
	paginator := s3.NewListObjectsV2Paginator(a.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			objects = append(objects, &model.MediaObject{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: obj.LastModified,
			})
			if maxKeys > 0 && int32(len(objects)) >= maxKeys {
				return objects, nil
			}
		}
	}

	return objects, nil
}

// DeleteObject deletes key, returning broker.ErrObjectNotFound when it does
// not exist.
func (a *MediaStorageAdapter) DeleteObject(ctx context.Context, key string) error {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return broker.ErrObjectNotFound
		}
		return fmt.Errorf("head object: %w", err)
	}

	_, err = a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// Compile-time check
var _ outbound.MediaStoragePort = (*MediaStorageAdapter)(nil)
