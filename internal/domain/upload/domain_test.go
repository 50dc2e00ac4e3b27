package upload

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/uniedit/mediaupload/internal/infra/events"
	"github.com/uniedit/mediaupload/internal/model"
	"github.com/uniedit/mediaupload/internal/port/outbound"
)

type testEnv struct {
	auth      *MockUploadAuthorizer
	transport *fakeTransport
	bus       *events.ProgressBus
	observer  *recordingObserver
	domain    *Domain

	mu        sync.Mutex
	published []int
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	cfg := DefaultConfig()
	cfg.RetireDelay = time.Hour
	if mutate != nil {
		mutate(cfg)
	}

	env := &testEnv{
		auth:      new(MockUploadAuthorizer),
		transport: &fakeTransport{},
		bus:       events.NewProgressBus(nil),
		observer:  newRecordingObserver(),
	}
	env.bus.Subscribe(events.Wildcard, func(ev model.ProgressEvent) {
		env.mu.Lock()
		env.published = append(env.published, ev.Percentage)
		env.mu.Unlock()
	})

	d, err := NewDomain(env.auth, env.transport, env.bus, nil, env.observer, nil, cfg, nil)
	require.NoError(t, err)
	env.domain = d
	return env
}

func assertNonDecreasing(t *testing.T, values []int) {
	t.Helper()
	assert.True(t, sort.IntsAreSorted(values), "progress went backwards: %v", values)
}

func TestDomain_SmallFileSingleShot(t *testing.T) {
	env := newTestEnv(t, nil)
	env.auth.onBeginSingle("photo.png")

	u, err := env.domain.Upload(context.Background(), zeroFile{name: "photo.png", size: 10 * mib})
	require.NoError(t, err)
	require.NotNil(t, u)

	env.auth.AssertNumberOfCalls(t, "BeginSingle", 1)
	env.auth.AssertNotCalled(t, "BeginMultipart", mock.Anything, mock.Anything, mock.Anything)
	require.Equal(t, 1, env.transport.callCount())
	assert.Equal(t, "image/png", env.transport.calls[0].contentType)
	assert.Equal(t, 10*mib, env.transport.calls[0].read)

	assert.Equal(t, model.UploadStatusSucceeded, u.Status)
	assert.Equal(t, 100, u.Progress)
	assert.Equal(t, model.TransferStrategySingle, u.Strategy)
	assert.Equal(t, []string{testKey("photo.png")}, env.observer.succeeded)
	require.Len(t, env.observer.added, 1)
	assert.Equal(t, 0, env.observer.added[0].Progress)
	assert.Equal(t, model.UploadSourceLocal, env.observer.added[0].Source)

	require.NotEmpty(t, env.published)
	assert.Equal(t, 100, env.published[len(env.published)-1])
	assertNonDecreasing(t, env.published)
	assertNonDecreasing(t, env.observer.progress)
}

func TestDomain_LargeFileChunked(t *testing.T) {
	env := newTestEnv(t, nil)
	env.auth.onChunked("video.png", 120*mib, 0, nil, nil)

	u, err := env.domain.Upload(context.Background(), zeroFile{name: "video.png", size: 120 * mib})
	require.NoError(t, err)

	env.auth.AssertNotCalled(t, "BeginSingle", mock.Anything, mock.Anything, mock.Anything)
	env.auth.AssertNumberOfCalls(t, "BeginMultipart", 1)
	assert.Len(t, env.auth.partNumbers(), 15)
	assert.Equal(t, 15, env.transport.callCount())
	assert.Equal(t, 120*mib, env.transport.totalRead())

	require.Len(t, env.auth.finalizedParts(), 1)
	parts := env.auth.finalizedParts()[0]
	require.Len(t, parts, 15)
	for i, p := range parts {
		assert.Equal(t, int32(i+1), p.PartNumber)
		assert.NotEmpty(t, p.ETag)
		assert.NotContains(t, p.ETag, `"`)
	}

	assert.Equal(t, model.UploadStatusSucceeded, u.Status)
	assert.Equal(t, 100, env.published[len(env.published)-1])
	assertNonDecreasing(t, env.published)
}

func TestDomain_PartFailureStopsSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.auth.onChunked("video.png", 120*mib, 0, nil, nil)
	env.transport.respond = func(url string) (*outbound.PutResult, error) {
		if partNumberOf(url) == 7 {
			return &outbound.PutResult{StatusCode: 500}, nil
		}
		return &outbound.PutResult{StatusCode: 200, ETag: `"tag"`}, nil
	}

	u, err := env.domain.Upload(context.Background(), zeroFile{name: "video.png", size: 120 * mib})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransfer)

	var transferErr *TransferError
	require.True(t, errors.As(err, &transferErr))
	assert.Equal(t, 7, transferErr.PartNumber)
	assert.Equal(t, 500, transferErr.StatusCode)

	assert.Equal(t, []int32{1, 2, 3, 4, 5, 6, 7}, env.auth.partNumbers())
	assert.Equal(t, 7, env.transport.callCount())
	env.auth.AssertNotCalled(t, "FinalizeMultipart", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	env.auth.AssertNotCalled(t, "AbortMultipart", mock.Anything, mock.Anything, mock.Anything)

	require.NotNil(t, u)
	assert.Equal(t, model.UploadStatusFailed, u.Status)
	assert.Equal(t, "Part upload failed with status 500", u.Error)
	assert.Less(t, u.Progress, 100)
	assert.Equal(t, "Part upload failed with status 500", env.observer.failed[testKey("video.png")])
	assert.Empty(t, env.observer.succeeded)
	assert.NotContains(t, env.published, 100)

	// Failed uploads stay in the registry.
	_, ok := env.domain.Registry().Get(testKey("video.png"))
	assert.True(t, ok)
}

func TestDomain_PartAuthorizationFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.auth.onChunked("video.png", 60*mib, 3, nil, nil)

	u, err := env.domain.Upload(context.Background(), zeroFile{name: "video.png", size: 60 * mib})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthorization)
	assert.Equal(t, "Failed to get part URL for part 3", Message(err))

	assert.Equal(t, []int32{1, 2, 3}, env.auth.partNumbers())
	assert.Equal(t, 2, env.transport.callCount())
	assert.Empty(t, env.auth.finalizedParts())
	assert.Equal(t, model.UploadStatusFailed, u.Status)
}

func TestDomain_MissingPartTag(t *testing.T) {
	env := newTestEnv(t, nil)
	env.auth.onChunked("video.png", 60*mib, 0, nil, nil)
	env.transport.respond = func(url string) (*outbound.PutResult, error) {
		if partNumberOf(url) == 2 {
			return &outbound.PutResult{StatusCode: 200, ETag: `""`}, nil
		}
		return &outbound.PutResult{StatusCode: 200, ETag: `"tag"`}, nil
	}

	_, err := env.domain.Upload(context.Background(), zeroFile{name: "video.png", size: 60 * mib})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingPartTag)

	var tagErr *MissingPartTagError
	require.True(t, errors.As(err, &tagErr))
	assert.Equal(t, 2, tagErr.PartNumber)
	assert.Len(t, env.auth.partNumbers(), 2)
	assert.Empty(t, env.auth.finalizedParts())
}

func TestDomain_TransportError(t *testing.T) {
	tests := []struct {
		name    string
		file    zeroFile
		message string
	}{
		{"single", zeroFile{name: "photo.png", size: mib}, "Network error during upload"},
		{"chunked part", zeroFile{name: "video.png", size: 60 * mib}, "Network error during part upload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.auth.onBeginSingle("photo.png")
			env.auth.onChunked("video.png", 60*mib, 0, nil, nil)
			env.transport.respond = func(string) (*outbound.PutResult, error) {
				return nil, errors.New("connection reset")
			}

			u, err := env.domain.Upload(context.Background(), tt.file)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTransfer)
			require.NotNil(t, u)
			assert.Equal(t, tt.message, u.Error)
			assert.Equal(t, tt.message, env.observer.failed[testKey(tt.file.name)])
		})
	}
}

func TestDomain_SingleNonSuccessStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	env.auth.onBeginSingle("photo.png")
	env.transport.respond = func(string) (*outbound.PutResult, error) {
		return &outbound.PutResult{StatusCode: 403}, nil
	}

	u, err := env.domain.Upload(context.Background(), zeroFile{name: "photo.png", size: mib})
	require.Error(t, err)
	assert.Equal(t, "Upload failed with status 403", u.Error)
	assert.Equal(t, "Upload failed with status 403", env.observer.failed[testKey("photo.png")])
}

func TestDomain_BeginFailureRegistersNothing(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.auth.On("BeginSingle", mock.Anything, "photo.png", "image/png").Return(nil, errors.New("unreachable"))

		u, err := env.domain.Upload(context.Background(), zeroFile{name: "photo.png", size: mib})
		assert.Nil(t, u)
		assert.ErrorIs(t, err, ErrAuthorization)
		assert.Equal(t, "Failed to get upload URL", Message(err))
		assert.Equal(t, 0, env.domain.Registry().Len())
		assert.Empty(t, env.observer.added)
		assert.Empty(t, env.observer.failed)
		assert.Equal(t, 0, env.transport.callCount())
	})

	t.Run("multipart", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.auth.On("BeginMultipart", mock.Anything, "video.png", "image/png").Return(nil, errors.New("unreachable"))

		u, err := env.domain.Upload(context.Background(), zeroFile{name: "video.png", size: 60 * mib})
		assert.Nil(t, u)
		assert.ErrorIs(t, err, ErrAuthorization)
		assert.Equal(t, 0, env.domain.Registry().Len())
		env.auth.AssertNumberOfCalls(t, "AuthorizePart", 0)
	})
}

func TestDomain_FinalizeFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.auth.onChunked("video.png", 60*mib, 0, errors.New("bad parts"), nil)

	u, err := env.domain.Upload(context.Background(), zeroFile{name: "video.png", size: 60 * mib})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthorization)
	assert.Equal(t, "Failed to complete multipart upload", u.Error)
	assert.Len(t, env.auth.finalizedParts(), 1)
	assert.NotContains(t, env.published, 100)
}

func TestDomain_AbortOnFailure(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.AbortOnFailure = true })
	env.auth.onChunked("video.png", 60*mib, 2, nil, errors.New("abort failed"))

	_, err := env.domain.Upload(context.Background(), zeroFile{name: "video.png", size: 60 * mib})
	require.Error(t, err)
	// The abort error does not replace the part failure.
	assert.ErrorIs(t, err, ErrAuthorization)
	assert.Equal(t, "Failed to get part URL for part 2", Message(err))
	env.auth.AssertCalled(t, "AbortMultipart", mock.Anything, testKey("video.png"), testSessionID)
	env.auth.AssertNumberOfCalls(t, "AbortMultipart", 1)
	assert.Empty(t, env.auth.finalizedParts())
}

func TestDomain_ConcurrentPartsKeepOrder(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.PartConcurrency = 4 })
	env.auth.onChunked("video.png", 120*mib, 0, nil, nil)
	// Lower part numbers finish last.
	env.transport.delay = func(url string) time.Duration {
		return time.Duration(20-partNumberOf(url)) * time.Millisecond
	}

	_, err := env.domain.Upload(context.Background(), zeroFile{name: "video.png", size: 120 * mib})
	require.NoError(t, err)

	require.Len(t, env.auth.finalizedParts(), 1)
	parts := env.auth.finalizedParts()[0]
	require.Len(t, parts, 15)
	for i, p := range parts {
		assert.Equal(t, int32(i+1), p.PartNumber)
		assert.Equal(t, "etag-"+strconv.Itoa(i+1), p.ETag)
	}
	assertNonDecreasing(t, env.published)
	assert.Equal(t, 100, env.published[len(env.published)-1])
}

func TestDomain_ConcurrentPartsStopOnFailure(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.PartConcurrency = 3 })
	env.auth.onChunked("video.png", 120*mib, 0, nil, nil)
	env.transport.delay = func(url string) time.Duration {
		if partNumberOf(url) > 4 {
			return 50 * time.Millisecond
		}
		return 0
	}
	env.transport.respond = func(url string) (*outbound.PutResult, error) {
		if partNumberOf(url) == 4 {
			return &outbound.PutResult{StatusCode: 500}, nil
		}
		return &outbound.PutResult{StatusCode: 200, ETag: "tag"}, nil
	}

	_, err := env.domain.Upload(context.Background(), zeroFile{name: "video.png", size: 120 * mib})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransfer)
	assert.Empty(t, env.auth.finalizedParts())
	assert.Less(t, len(env.auth.partNumbers()), 15)
}

func TestDomain_SubmitAndShutdown(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxConcurrentUploads = 2 })
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		env.auth.onBeginSingle(name)
	}

	results := []<-chan Result{
		env.domain.Submit(context.Background(), zeroFile{name: "a.png", size: mib}),
		env.domain.Submit(context.Background(), zeroFile{name: "b.png", size: 2 * mib}),
		env.domain.Submit(context.Background(), zeroFile{name: "c.png", size: 3 * mib}),
	}
	for _, ch := range results {
		res := <-ch
		require.NoError(t, res.Err)
		assert.Equal(t, model.UploadStatusSucceeded, res.Upload.Status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.domain.Shutdown(ctx))

	res := <-env.domain.Submit(context.Background(), zeroFile{name: "d.png", size: mib})
	assert.ErrorIs(t, res.Err, ErrShuttingDown)
	env.auth.AssertExpectations(t)
}

func TestDomain_RetiresSucceededUploads(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.RetireDelay = 10 * time.Millisecond })
	env.auth.onBeginSingle("photo.png")

	_, err := env.domain.Upload(context.Background(), zeroFile{name: "photo.png", size: mib})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return env.domain.Registry().Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestDomain_Refresh(t *testing.T) {
	env := newTestEnv(t, nil)
	env.auth.On("ListMedia", mock.Anything).Return([]*model.MediaObject{
		{Key: "1-a.png", URL: "https://cdn/1-a.png", Size: 10},
	}, nil)

	require.NoError(t, env.domain.Refresh(context.Background()))

	u, ok := env.domain.Registry().Get("1-a.png")
	require.True(t, ok)
	assert.Equal(t, model.UploadSourceRemote, u.Source)
	assert.Equal(t, "https://cdn/1-a.png", u.URL)
}

func TestNewDomain_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkSize = 0

	_, err := NewDomain(new(MockUploadAuthorizer), &fakeTransport{}, events.NewProgressBus(nil), nil, nil, nil, cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDomain_DuplicateKeyFailsFast(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.auth.onBeginSingle("photo.png")

		_, err := env.domain.Upload(context.Background(), zeroFile{name: "photo.png", size: mib})
		require.NoError(t, err)

		u, err := env.domain.Upload(context.Background(), zeroFile{name: "photo.png", size: mib})
		assert.Nil(t, u)
		assert.ErrorIs(t, err, ErrAuthorization)
		assert.ErrorIs(t, err, ErrUploadExists)
		assert.Equal(t, "Duplicate upload key", Message(err))
		assert.Equal(t, 1, env.transport.callCount())
		assert.Len(t, env.observer.added, 1)
		assert.Empty(t, env.observer.failed)

		// The tracked upload is untouched.
		existing, ok := env.domain.Registry().Get(testKey("photo.png"))
		require.True(t, ok)
		assert.Equal(t, model.UploadStatusSucceeded, existing.Status)
	})

	t.Run("chunked", func(t *testing.T) {
		env := newTestEnv(t, func(c *Config) { c.AbortOnFailure = true })
		env.auth.onChunked("video.png", 60*mib, 0, nil, nil)
		require.NoError(t, env.domain.Registry().Add(&model.LogicalUpload{
			ID:     testKey("video.png"),
			Key:    testKey("video.png"),
			Status: model.UploadStatusUploading,
			Source: model.UploadSourceLocal,
		}))

		u, err := env.domain.Upload(context.Background(), zeroFile{name: "video.png", size: 60 * mib})
		assert.Nil(t, u)
		assert.ErrorIs(t, err, ErrUploadExists)
		env.auth.AssertNumberOfCalls(t, "AuthorizePart", 0)
		env.auth.AssertNumberOfCalls(t, "AbortMultipart", 1)
		assert.Equal(t, 0, env.transport.callCount())
		assert.Empty(t, env.observer.failed)

		existing, ok := env.domain.Registry().Get(testKey("video.png"))
		require.True(t, ok)
		assert.Equal(t, model.UploadStatusUploading, existing.Status)
	})
}
