package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthorization matches every *AuthorizationError.
	ErrAuthorization = errors.New("authorization failed")

	// ErrTransfer matches every *TransferError.
	ErrTransfer = errors.New("transfer failed")

	// ErrMissingPartTag matches every *MissingPartTagError.
	ErrMissingPartTag = errors.New("missing part tag")

	// ErrInvalidConfig is returned for unusable orchestrator configuration.
	ErrInvalidConfig = errors.New("invalid upload config")

	// ErrUploadExists is returned when an id is already tracked as a local upload.
	ErrUploadExists = errors.New("upload already registered")

	// ErrUploadNotFound is returned when an id is not in the registry.
	ErrUploadNotFound = errors.New("upload not found")

	// ErrShuttingDown is returned by Submit after Shutdown has begun.
	ErrShuttingDown = errors.New("upload domain shutting down")
)

// AuthorizationError reports that the authorization collaborator was
// unreachable or rejected a begin, part-authorize or finalize request.
type AuthorizationError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthorizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

func (e *AuthorizationError) Is(target error) bool { return target == ErrAuthorization }

// TransferError reports a non-success status or a transport failure on a
// byte PUT. StatusCode is zero for transport failures.
type TransferError struct {
	PartNumber int
	StatusCode int
	Message    string
	Err        error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TransferError) Unwrap() error { return e.Err }

func (e *TransferError) Is(target error) bool { return target == ErrTransfer }

// MissingPartTagError reports a part PUT that succeeded without an ETag.
type MissingPartTagError struct {
	PartNumber int
}

func (e *MissingPartTagError) Error() string {
	return fmt.Sprintf("No ETag returned for part %d", e.PartNumber)
}

func (e *MissingPartTagError) Is(target error) bool { return target == ErrMissingPartTag }

// Message returns the human-readable failure text for err, without the
// wrapped cause.
func Message(err error) string {
	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	var transferErr *TransferError
	if errors.As(err, &transferErr) {
		return transferErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func newAuthorizationError(op, message string, err error) *AuthorizationError {
	return &AuthorizationError{Op: op, Message: message, Err: err}
}
