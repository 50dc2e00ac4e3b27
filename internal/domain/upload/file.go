package upload

import (
	"bytes"
	"io"
)

// File is a payload submitted for upload. Size must be known up front so
// the transfer strategy can be chosen before any byte is read.
type File interface {
	io.ReaderAt
	Name() string
	ContentType() string
	Size() int64
}

// Releaser is implemented by files that hold resources (a preview, an open
// handle) to be freed once the upload has succeeded.
type Releaser interface {
	Release()
}

type readerAtFile struct {
	io.ReaderAt
	name        string
	contentType string
	size        int64
}

// NewFile wraps r as a File.
func NewFile(name, contentType string, r io.ReaderAt, size int64) File {
	return &readerAtFile{ReaderAt: r, name: name, contentType: contentType, size: size}
}

// NewBytesFile returns a File backed by an in-memory buffer.
func NewBytesFile(name, contentType string, data []byte) File {
	return NewFile(name, contentType, bytes.NewReader(data), int64(len(data)))
}

func (f *readerAtFile) Name() string        { return f.name }
func (f *readerAtFile) ContentType() string { return f.contentType }
func (f *readerAtFile) Size() int64         { return f.size }
