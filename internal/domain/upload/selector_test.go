package upload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/uniedit/mediaupload/internal/model"
)

type stubTransfer struct {
	calls int
	key   string
	err   error
}

func (s *stubTransfer) Upload(ctx context.Context, file File, begin BeginFunc) (string, error) {
	s.calls++
	return s.key, s.err
}

func TestSelector_Boundary(t *testing.T) {
	s := NewSelector(DefaultSizeThreshold, nil, nil)

	assert.Equal(t, model.TransferStrategySingle, s.Strategy(0))
	assert.Equal(t, model.TransferStrategySingle, s.Strategy(DefaultSizeThreshold-1))
	assert.Equal(t, model.TransferStrategyChunked, s.Strategy(DefaultSizeThreshold))
	assert.Equal(t, model.TransferStrategyChunked, s.Strategy(DefaultSizeThreshold+1))
}

func TestSelector_ForwardsResultUnchanged(t *testing.T) {
	wantErr := &TransferError{Message: "Upload failed with status 500"}
	single := &stubTransfer{key: "s", err: wantErr}
	chunked := &stubTransfer{key: "c"}
	s := NewSelector(100, single, chunked)

	key, strategy, err := s.Upload(context.Background(), zeroFile{size: 99}, func(string) error { return nil })
	assert.Equal(t, "s", key)
	assert.Equal(t, model.TransferStrategySingle, strategy)
	assert.Same(t, wantErr, err)

	key, strategy, err = s.Upload(context.Background(), zeroFile{size: 100}, func(string) error { return nil })
	assert.Equal(t, "c", key)
	assert.Equal(t, model.TransferStrategyChunked, strategy)
	assert.NoError(t, err)

	assert.Equal(t, 1, single.calls)
	assert.Equal(t, 1, chunked.calls)
}
