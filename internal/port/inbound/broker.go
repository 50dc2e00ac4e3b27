package inbound

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/mediaupload/internal/model"
)

// --- Request/Response Types ---

// UploadURLInput requests a presigned single-shot PUT.
type UploadURLInput struct {
	FileName string `json:"fileName" binding:"required"`
	FileType string `json:"fileType" binding:"required"`
}

// UploadURLOutput carries the presigned PUT and the assigned key.
type UploadURLOutput struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

// MultipartStartInput requests a multipart session.
type MultipartStartInput struct {
	FileName string `json:"fileName" binding:"required"`
	FileType string `json:"fileType" binding:"required"`
}

// MultipartStartOutput carries the session id and the assigned key.
type MultipartStartOutput struct {
	UploadID string `json:"uploadId"`
	Key      string `json:"key"`
}

// PartURLInput requests a presigned URL for one part.
type PartURLInput struct {
	Key        string `json:"key" binding:"required"`
	UploadID   string `json:"uploadId" binding:"required"`
	PartNumber int32  `json:"partNumber" binding:"required,min=1,max=10000"`
}

// PartURLOutput carries a presigned part URL.
type PartURLOutput struct {
	URL string `json:"url"`
}

// MultipartCompleteInput finalizes a multipart session.
type MultipartCompleteInput struct {
	Key      string             `json:"key" binding:"required"`
	UploadID string             `json:"uploadId" binding:"required"`
	Parts    []model.PartRecord `json:"parts" binding:"required,min=1"`
}

// MultipartAbortInput discards a multipart session.
type MultipartAbortInput struct {
	Key      string `json:"key" binding:"required"`
	UploadID string `json:"uploadId" binding:"required"`
}

// MediaListOutput lists stored media.
type MediaListOutput struct {
	Items []*model.MediaObject `json:"items"`
}

// MediaDeleteInput deletes one stored object.
type MediaDeleteInput struct {
	Key string `json:"key" binding:"required"`
}

// OKOutput is the acknowledgement body for mutating calls.
type OKOutput struct {
	OK bool `json:"ok"`
}

// --- Domain Interface ---

// BrokerDomain issues short-lived storage authorizations and manages media objects.
type BrokerDomain interface {
	// IssueUploadURL presigns a single-shot PUT for a new object.
	IssueUploadURL(ctx context.Context, input *UploadURLInput) (*UploadURLOutput, error)

	// StartMultipart opens a multipart session for a new object.
	StartMultipart(ctx context.Context, input *MultipartStartInput) (*MultipartStartOutput, error)

	// IssuePartURL presigns one part of an open session.
	IssuePartURL(ctx context.Context, input *PartURLInput) (*PartURLOutput, error)

	// CompleteMultipart finalizes a session.
	CompleteMultipart(ctx context.Context, input *MultipartCompleteInput) error

	// AbortMultipart discards a session.
	AbortMultipart(ctx context.Context, input *MultipartAbortInput) error

	// ListMedia lists stored media with public URLs.
	ListMedia(ctx context.Context) (*MediaListOutput, error)

	// DeleteMedia deletes one stored object.
	DeleteMedia(ctx context.Context, input *MediaDeleteInput) error
}

// --- HTTP Port Interfaces ---

// BrokerHttpPort defines broker HTTP handlers.
type BrokerHttpPort interface {
	UploadURL(c *gin.Context)
	StartMultipart(c *gin.Context)
	PartURL(c *gin.Context)
	CompleteMultipart(c *gin.Context)
	AbortMultipart(c *gin.Context)
	ListMedia(c *gin.Context)
	DeleteMedia(c *gin.Context)
}
