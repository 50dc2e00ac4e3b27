package upload

import (
	"context"

	"github.com/uniedit/mediaupload/internal/model"
)

// BeginFunc is called by a transfer once the collaborator has assigned the
// storage key, before any byte is sent. A transfer stops without sending
// anything when it returns an error.
type BeginFunc func(key string) error

// Transfer uploads one file. It returns the storage key when one was
// assigned, even if the transfer later failed.
type Transfer interface {
	Upload(ctx context.Context, file File, begin BeginFunc) (string, error)
}

// Selector routes a file to single-shot or chunked transfer by size.
type Selector struct {
	threshold int64
	single    Transfer
	chunked   Transfer
}

// NewSelector creates a selector. Files smaller than threshold go to single.
func NewSelector(threshold int64, single, chunked Transfer) *Selector {
	return &Selector{threshold: threshold, single: single, chunked: chunked}
}

// Strategy returns the strategy for a payload of size bytes.
func (s *Selector) Strategy(size int64) model.TransferStrategy {
	if size < s.threshold {
		return model.TransferStrategySingle
	}
	return model.TransferStrategyChunked
}

// Upload forwards the file to the selected transfer and returns its result unchanged.
func (s *Selector) Upload(ctx context.Context, file File, begin BeginFunc) (string, model.TransferStrategy, error) {
	strategy := s.Strategy(file.Size())
	if strategy == model.TransferStrategySingle {
		key, err := s.single.Upload(ctx, file, begin)
		return key, strategy, err
	}
	key, err := s.chunked.Upload(ctx, file, begin)
	return key, strategy, err
}
