package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/uniedit/mediaupload/internal/model"
	"github.com/uniedit/mediaupload/internal/port/outbound"
)

const mib = int64(1 << 20)

// zeroFile is a File of arbitrary size that reads as zeros without
// holding the payload in memory.
type zeroFile struct {
	name string
	size int64
}

func (f zeroFile) Name() string        { return f.name }
func (f zeroFile) ContentType() string { return "image/png" }
func (f zeroFile) Size() int64         { return f.size }

func (f zeroFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= f.size {
		return 0, io.EOF
	}
	n := int64(len(p))
	if remaining := f.size - off; n > remaining {
		n = remaining
	}
	clear(p[:n])
	if n < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

// --- Mock implementations ---

const testSessionID = "session-1"

// testKey is the storage key the mock authorizer assigns to fileName.
func testKey(fileName string) string {
	return "1700000000000-" + fileName
}

type MockUploadAuthorizer struct {
	mock.Mock

	mu        sync.Mutex
	finalized [][]model.PartRecord
}

func (m *MockUploadAuthorizer) BeginSingle(ctx context.Context, fileName, contentType string) (*model.SingleAuthorization, error) {
	args := m.Called(ctx, fileName, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SingleAuthorization), args.Error(1)
}

func (m *MockUploadAuthorizer) BeginMultipart(ctx context.Context, fileName, contentType string) (*model.MultipartSession, error) {
	args := m.Called(ctx, fileName, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MultipartSession), args.Error(1)
}

func (m *MockUploadAuthorizer) AuthorizePart(ctx context.Context, key, sessionID string, partNumber int32) (*model.PartAuthorization, error) {
	args := m.Called(ctx, key, sessionID, partNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PartAuthorization), args.Error(1)
}

func (m *MockUploadAuthorizer) FinalizeMultipart(ctx context.Context, key, sessionID string, parts []model.PartRecord) error {
	return m.Called(ctx, key, sessionID, parts).Error(0)
}

func (m *MockUploadAuthorizer) AbortMultipart(ctx context.Context, key, sessionID string) error {
	return m.Called(ctx, key, sessionID).Error(0)
}

func (m *MockUploadAuthorizer) ListMedia(ctx context.Context) ([]*model.MediaObject, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.MediaObject), args.Error(1)
}

var _ outbound.UploadAuthorizerPort = (*MockUploadAuthorizer)(nil)

// onBeginSingle authorizes a single PUT of fileName.
func (m *MockUploadAuthorizer) onBeginSingle(fileName string) *mock.Call {
	key := testKey(fileName)
	return m.On("BeginSingle", mock.Anything, fileName, "image/png").
		Return(&model.SingleAuthorization{URL: "https://store/single/" + key, Key: key}, nil)
}

// onChunked opens a session for fileName and authorizes every part of a
// payload of size bytes. The part numbered failPart is rejected; zero
// rejects none. Finalized part lists are recorded in order.
func (m *MockUploadAuthorizer) onChunked(fileName string, size int64, failPart int32, finalizeErr, abortErr error) {
	key := testKey(fileName)
	m.On("BeginMultipart", mock.Anything, fileName, "image/png").
		Return(&model.MultipartSession{SessionID: testSessionID, Key: key}, nil)

	parts := int32((size + DefaultChunkSize - 1) / DefaultChunkSize)
	for n := int32(1); n <= parts; n++ {
		call := m.On("AuthorizePart", mock.Anything, key, testSessionID, n)
		if n == failPart {
			call.Return(nil, errors.New("collaborator rejected part"))
			continue
		}
		call.Return(&model.PartAuthorization{URL: fmt.Sprintf("https://store/part/%d", n)}, nil)
	}

	m.On("FinalizeMultipart", mock.Anything, key, testSessionID, mock.Anything).
		Run(func(args mock.Arguments) {
			m.mu.Lock()
			defer m.mu.Unlock()
			records := args.Get(3).([]model.PartRecord)
			m.finalized = append(m.finalized, append([]model.PartRecord(nil), records...))
		}).
		Return(finalizeErr)
	m.On("AbortMultipart", mock.Anything, key, testSessionID).Return(abortErr)
}

func (m *MockUploadAuthorizer) finalizedParts() [][]model.PartRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalized
}

// partNumbers lists the authorized part numbers in call order.
func (m *MockUploadAuthorizer) partNumbers() []int32 {
	var parts []int32
	for _, c := range m.Calls {
		if c.Method == "AuthorizePart" {
			parts = append(parts, c.Arguments.Get(3).(int32))
		}
	}
	return parts
}

type putCall struct {
	url         string
	size        int64
	read        int64
	contentType string
}

// fakeTransport drains each body and answers with respond, or 200 plus an
// ETag derived from the URL when respond is nil.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []putCall
	respond func(url string) (*outbound.PutResult, error)
	delay   func(url string) time.Duration
}

func (f *fakeTransport) Put(ctx context.Context, url string, body io.Reader, size int64, contentType string, onBytes func(int64)) (*outbound.PutResult, error) {
	if f.delay != nil {
		select {
		case <-time.After(f.delay(url)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	half, err := io.CopyN(io.Discard, body, size/2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	onBytes(half)
	rest, err := io.Copy(io.Discard, body)
	if err != nil {
		return nil, err
	}
	onBytes(half + rest)

	f.mu.Lock()
	f.calls = append(f.calls, putCall{url: url, size: size, read: half + rest, contentType: contentType})
	f.mu.Unlock()

	if f.respond != nil {
		return f.respond(url)
	}
	return &outbound.PutResult{StatusCode: 200, ETag: `"etag-` + partSuffix(url) + `"`}, nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) totalRead() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, c := range f.calls {
		n += c.read
	}
	return n
}

func partSuffix(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}

func partNumberOf(url string) int {
	n, _ := strconv.Atoi(partSuffix(url))
	return n
}

// recordingObserver collects observer callbacks.
type recordingObserver struct {
	mu        sync.Mutex
	progress  []int
	added     []*model.LogicalUpload
	succeeded []string
	failed    map[string]string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{failed: make(map[string]string)}
}

func (o *recordingObserver) OnProgress(id string, p int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = append(o.progress, p)
}

func (o *recordingObserver) OnOptimisticallyAdded(u *model.LogicalUpload) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.added = append(o.added, u)
}

func (o *recordingObserver) OnSucceeded(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.succeeded = append(o.succeeded, id)
}

func (o *recordingObserver) OnFailed(id, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed[id] = message
}
