package model

import "time"

// UploadStatus represents the lifecycle state of a logical upload.
type UploadStatus string

const (
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusSucceeded UploadStatus = "succeeded"
	UploadStatusFailed    UploadStatus = "failed"
)

// IsTerminal returns true if the status will not change again.
func (s UploadStatus) IsTerminal() bool {
	return s == UploadStatusSucceeded || s == UploadStatusFailed
}

// UploadSource tells where a registry entry came from.
type UploadSource string

const (
	// UploadSourceLocal marks an upload started by this process.
	UploadSourceLocal UploadSource = "local"
	// UploadSourceRemote marks an object already present in the store.
	UploadSourceRemote UploadSource = "remote"
)

// TransferStrategy is the transfer mode chosen for a file.
type TransferStrategy string

const (
	TransferStrategySingle  TransferStrategy = "single"
	TransferStrategyChunked TransferStrategy = "chunked"
)

// LogicalUpload is one user-visible upload tracked by the registry.
type LogicalUpload struct {
	ID          string           `json:"id"`
	Key         string           `json:"key"`
	FileName    string           `json:"file_name,omitempty"`
	ContentType string           `json:"content_type,omitempty"`
	Size        int64            `json:"size"`
	Status      UploadStatus     `json:"status"`
	Progress    int              `json:"progress"`
	Error       string           `json:"error,omitempty"`
	Source      UploadSource     `json:"source"`
	Strategy    TransferStrategy `json:"strategy,omitempty"`
	URL         string           `json:"url,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Clone returns a copy safe to hand out of the registry.
func (u *LogicalUpload) Clone() *LogicalUpload {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// PartRecord is one completed part of a multipart session.
type PartRecord struct {
	PartNumber int32  `json:"PartNumber"`
	ETag       string `json:"ETag"`
}

// ChunkedSession tracks the multipart state of a single chunked transfer.
type ChunkedSession struct {
	Key       string
	SessionID string
	TotalSize int64
	ChunkSize int64
	Parts     []PartRecord
}

// PartCount returns ceil(TotalSize / ChunkSize).
func (s *ChunkedSession) PartCount() int {
	return PartCount(s.TotalSize, s.ChunkSize)
}

// PartCount returns the number of chunks needed to cover size bytes.
func PartCount(size, chunkSize int64) int {
	if size <= 0 || chunkSize <= 0 {
		return 0
	}
	return int((size + chunkSize - 1) / chunkSize)
}

// PartRange returns the [start, end) byte range of the 1-based part n.
func PartRange(n int, size, chunkSize int64) (start, end int64) {
	start = int64(n-1) * chunkSize
	end = start + chunkSize
	if end > size {
		end = size
	}
	return start, end
}

// ProgressEvent carries an integer percentage for one upload.
type ProgressEvent struct {
	UploadID   string `json:"upload_id"`
	Percentage int    `json:"percentage"`
}

// SingleAuthorization is the result of authorizing a single-shot PUT.
type SingleAuthorization struct {
	URL string `json:"uploadUrl"`
	Key string `json:"key"`
}

// MultipartSession is the result of beginning a multipart session.
type MultipartSession struct {
	SessionID string `json:"uploadId"`
	Key       string `json:"key"`
}

// PartAuthorization is a presigned URL scoped to one part number.
type PartAuthorization struct {
	URL string `json:"url"`
}

// MediaObject describes an object already present in the media bucket.
type MediaObject struct {
	Key          string     `json:"key"`
	URL          string     `json:"url"`
	Size         int64      `json:"size"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// PresignedRequest is a presigned URL issued by the object store.
type PresignedRequest struct {
	URL       string
	Method    string
	ExpiresAt time.Time
}
