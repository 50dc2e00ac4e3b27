package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/uniedit/mediaupload/internal/model"
	"github.com/uniedit/mediaupload/internal/port/outbound"
)

// ChunkedTransfer drives the multipart lifecycle for one file: begin,
// per-part authorization and upload, then finalize with the ordered tags.
type ChunkedTransfer struct {
	authorizer     outbound.UploadAuthorizerPort
	transport      outbound.BlobTransportPort
	bus            outbound.ProgressBusPort
	metrics        MetricsRecorder
	chunkSize      int64
	concurrency    int
	abortOnFailure bool
	logger         *zap.Logger
}

// NewChunkedTransfer creates a chunked transfer from cfg.
func NewChunkedTransfer(
	authorizer outbound.UploadAuthorizerPort,
	transport outbound.BlobTransportPort,
	bus outbound.ProgressBusPort,
	metrics MetricsRecorder,
	cfg *Config,
	logger *zap.Logger,
) *ChunkedTransfer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := cfg.PartConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &ChunkedTransfer{
		authorizer:     authorizer,
		transport:      transport,
		bus:            bus,
		metrics:        metrics,
		chunkSize:      cfg.ChunkSize,
		concurrency:    concurrency,
		abortOnFailure: cfg.AbortOnFailure,
		logger:         logger.Named("chunked-transfer"),
	}
}

// Upload runs the session. On any failure after begin the session is left
// open unless abortOnFailure is set, and finalize is never called.
func (t *ChunkedTransfer) Upload(ctx context.Context, file File, begin BeginFunc) (string, error) {
	session, err := t.authorizer.BeginMultipart(ctx, file.Name(), file.ContentType())
	if err != nil {
		return "", newAuthorizationError("begin_multipart", "Failed to start multipart upload", err)
	}
	if session == nil || session.SessionID == "" || session.Key == "" {
		return "", newAuthorizationError("begin_multipart", "Failed to start multipart upload", nil)
	}

	cs := &model.ChunkedSession{
		Key:       session.Key,
		SessionID: session.SessionID,
		TotalSize: file.Size(),
		ChunkSize: t.chunkSize,
	}
	if err := begin(session.Key); err != nil {
		t.abort(cs, err)
		return "", err
	}
	tracker := newProgressTracker(cs.Key, cs.TotalSize, t.bus)
	tracker.update(0)

	t.logger.Debug("multipart session started",
		zap.String("key", cs.Key),
		zap.Int("parts", cs.PartCount()),
		zap.Int64("size", cs.TotalSize),
	)

	if t.concurrency > 1 {
		err = t.uploadConcurrent(ctx, file, cs, tracker)
	} else {
		err = t.uploadSequential(ctx, file, cs, tracker)
	}
	if err != nil {
		t.abort(cs, err)
		return cs.Key, err
	}

	if err := t.authorizer.FinalizeMultipart(ctx, cs.Key, cs.SessionID, cs.Parts); err != nil {
		t.abort(cs, err)
		return cs.Key, newAuthorizationError("finalize_multipart", "Failed to complete multipart upload", err)
	}

	tracker.complete()
	return cs.Key, nil
}

// uploadSequential uploads parts 1..n in order; part n+1 never starts
// before part n has its tag.
func (t *ChunkedTransfer) uploadSequential(ctx context.Context, file File, cs *model.ChunkedSession, tracker *progressTracker) error {
	var before int64
	for n := 1; n <= cs.PartCount(); n++ {
		sentBefore := before
		rec, err := t.uploadPart(ctx, file, cs, n, func(sent int64) {
			tracker.update(sentBefore + sent)
		})
		if err != nil {
			return err
		}
		cs.Parts = append(cs.Parts, rec)
		start, end := model.PartRange(n, cs.TotalSize, cs.ChunkSize)
		before += end - start
	}
	return nil
}

// uploadConcurrent uploads up to t.concurrency parts at once. Results are
// stored by part index so cs.Parts is sorted regardless of completion order.
func (t *ChunkedTransfer) uploadConcurrent(ctx context.Context, file File, cs *model.ChunkedSession, tracker *progressTracker) error {
	count := cs.PartCount()
	records := make([]model.PartRecord, count)
	sentPerPart := make([]atomic.Int64, count)
	var total atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)

	for n := 1; n <= count; n++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec, err := t.uploadPart(gctx, file, cs, n, func(sent int64) {
				prev := sentPerPart[n-1].Swap(sent)
				tracker.update(total.Add(sent - prev))
			})
			if err != nil {
				return err
			}
			records[n-1] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	cs.Parts = records
	return nil
}

func (t *ChunkedTransfer) uploadPart(ctx context.Context, file File, cs *model.ChunkedSession, n int, onBytes func(int64)) (model.PartRecord, error) {
	auth, err := t.authorizer.AuthorizePart(ctx, cs.Key, cs.SessionID, int32(n))
	if err == nil && (auth == nil || auth.URL == "") {
		err = errors.New("empty part url")
	}
	if err != nil {
		t.metrics.RecordPart("failed")
		return model.PartRecord{}, newAuthorizationError("authorize_part", fmt.Sprintf("Failed to get part URL for part %d", n), err)
	}

	start, end := model.PartRange(n, cs.TotalSize, cs.ChunkSize)
	body := io.NewSectionReader(file, start, end-start)

	res, err := t.transport.Put(ctx, auth.URL, body, end-start, "", onBytes)
	if err != nil {
		t.metrics.RecordPart("failed")
		return model.PartRecord{}, &TransferError{PartNumber: n, Message: "Network error during part upload", Err: err}
	}
	if !isSuccess(res.StatusCode) {
		t.metrics.RecordPart("failed")
		return model.PartRecord{}, &TransferError{
			PartNumber: n,
			StatusCode: res.StatusCode,
			Message:    fmt.Sprintf("Part upload failed with status %d", res.StatusCode),
		}
	}

	tag := NormalizeETag(res.ETag)
	if tag == "" {
		t.metrics.RecordPart("failed")
		return model.PartRecord{}, &MissingPartTagError{PartNumber: n}
	}

	t.metrics.RecordPart("succeeded")
	return model.PartRecord{PartNumber: int32(n), ETag: tag}, nil
}

// abort discards the remote session when abortOnFailure is set. Its own
// failure is logged and never replaces cause.
func (t *ChunkedTransfer) abort(cs *model.ChunkedSession, cause error) {
	if !t.abortOnFailure {
		t.logger.Info("multipart session left open after failure",
			zap.String("key", cs.Key),
			zap.Int("parts_uploaded", len(cs.Parts)),
			zap.Error(cause),
		)
		return
	}

	// The caller's context may already be cancelled.
	if err := t.authorizer.AbortMultipart(context.Background(), cs.Key, cs.SessionID); err != nil {
		t.logger.Warn("abort multipart session failed",
			zap.String("key", cs.Key),
			zap.Error(err),
		)
		return
	}
	t.logger.Info("multipart session aborted",
		zap.String("key", cs.Key),
		zap.Error(cause),
	)
}

// NormalizeETag strips surrounding whitespace and double quotes.
func NormalizeETag(etag string) string {
	return strings.Trim(strings.TrimSpace(etag), `"`)
}
