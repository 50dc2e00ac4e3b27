package filetype

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// AcceptedImageTypes are the content types the media gallery accepts.
var AcceptedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// ErrNotAccepted is returned for files whose detected type is not accepted.
var ErrNotAccepted = errors.New("file type not accepted")

// sniffLen is how many leading bytes are inspected.
const sniffLen = 3072

// Detect sniffs the content type of r from its leading bytes.
func Detect(r io.ReaderAt) string {
	m, err := mimetype.DetectReader(io.NewSectionReader(r, 0, sniffLen))
	if err != nil {
		return "application/octet-stream"
	}
	return m.String()
}

// IsAccepted reports whether contentType is one of accepted. Parameters such
// as charset are ignored.
func IsAccepted(contentType string, accepted []string) bool {
	return mimetype.EqualsAny(contentType, accepted...)
}

// LocalFile is an opened file on disk with its detected content type.
type LocalFile struct {
	f           *os.File
	name        string
	contentType string
	size        int64
	closeOnce   sync.Once
	closeErr    error
}

// Open opens path and detects its content type. When accepted is non-empty
// the detected type must be one of them.
func Open(path string, accepted []string) (*LocalFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	contentType := Detect(f)
	if len(accepted) > 0 && !IsAccepted(contentType, accepted) {
		f.Close()
		return nil, fmt.Errorf("%w: %s is %s", ErrNotAccepted, path, contentType)
	}

	return &LocalFile{
		f:           f,
		name:        filepath.Base(path),
		contentType: contentType,
		size:        info.Size(),
	}, nil
}

func (l *LocalFile) ReadAt(p []byte, off int64) (int, error) { return l.f.ReadAt(p, off) }
func (l *LocalFile) Name() string                             { return l.name }
func (l *LocalFile) ContentType() string                      { return l.contentType }
func (l *LocalFile) Size() int64                              { return l.size }

// Release closes the file once its upload has succeeded.
func (l *LocalFile) Release() {
	_ = l.Close()
}

// Close closes the underlying file. It is safe to call more than once.
func (l *LocalFile) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.f.Close()
	})
	return l.closeErr
}
