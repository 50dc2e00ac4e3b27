package broker

import "errors"

var (
	// ErrInvalidInput is returned when a request is missing required fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrContentTypeNotAllowed is returned for content types outside the allow list.
	ErrContentTypeNotAllowed = errors.New("content type not allowed")

	// ErrInvalidPartList is returned for empty, duplicated or non-positive part numbers.
	ErrInvalidPartList = errors.New("invalid part list")

	// ErrMissingUploadID is returned when the store opens a session without an id.
	ErrMissingUploadID = errors.New("no uploadId returned from storage")

	// ErrObjectNotFound is returned when the object does not exist.
	ErrObjectNotFound = errors.New("object not found")
)
