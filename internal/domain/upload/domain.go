package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uniedit/mediaupload/internal/model"
	"github.com/uniedit/mediaupload/internal/port/outbound"
)

// Result is the terminal outcome of a submitted upload.
type Result struct {
	Upload *model.LogicalUpload
	Err    error
}

// Domain is the upload orchestrator. It selects a transfer strategy for each
// file, keeps the registry in step with transfer progress and outcomes, and
// reports them to the observer.
type Domain struct {
	selector   *Selector
	registry   *Registry
	bus        outbound.ProgressBusPort
	authorizer outbound.UploadAuthorizerPort
	observer   Observer
	metrics    MetricsRecorder
	config     *Config
	logger     *zap.Logger

	semaphore chan struct{}

	mu       sync.Mutex
	closing  bool
	inflight sync.WaitGroup
}

// NewDomain creates a new upload domain.
func NewDomain(
	authorizer outbound.UploadAuthorizerPort,
	transport outbound.BlobTransportPort,
	bus outbound.ProgressBusPort,
	registry *Registry,
	observer Observer,
	metrics MetricsRecorder,
	config *Config,
	logger *zap.Logger,
) (*Domain, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if observer == nil {
		observer = ObserverFuncs{}
	}
	if registry == nil {
		registry = NewRegistry(config.RetireDelay, logger)
	}

	single := NewSingleTransfer(authorizer, transport, bus, logger)
	chunked := NewChunkedTransfer(authorizer, transport, bus, metrics, config, logger)

	d := &Domain{
		selector:   NewSelector(config.SizeThreshold, single, chunked),
		registry:   registry,
		bus:        bus,
		authorizer: authorizer,
		observer:   observer,
		metrics:    metrics,
		config:     config,
		logger:     logger.Named("upload"),
	}
	if config.MaxConcurrentUploads > 0 {
		d.semaphore = make(chan struct{}, config.MaxConcurrentUploads)
	}
	return d, nil
}

// Registry returns the registry the domain updates.
func (d *Domain) Registry() *Registry {
	return d.registry
}

// Strategy returns the transfer strategy a file of size bytes would use.
func (d *Domain) Strategy(size int64) model.TransferStrategy {
	return d.selector.Strategy(size)
}

// Submit starts uploading file in the background. The returned channel
// receives exactly one Result and is then closed.
func (d *Domain) Submit(ctx context.Context, file File) <-chan Result {
	out := make(chan Result, 1)

	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		out <- Result{Err: ErrShuttingDown}
		close(out)
		return out
	}
	d.inflight.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.inflight.Done()
		defer close(out)
		u, err := d.Upload(ctx, file)
		out <- Result{Upload: u, Err: err}
	}()
	return out
}

// Upload runs one upload to completion and returns the final registry
// snapshot. The snapshot is nil when the collaborator never assigned a key.
func (d *Domain) Upload(ctx context.Context, file File) (*model.LogicalUpload, error) {
	if err := d.acquire(ctx); err != nil {
		return nil, &TransferError{Message: "Upload cancelled", Err: err}
	}
	defer d.release()

	start := time.Now()
	strategy := d.selector.Strategy(file.Size())

	var (
		id          string
		unsubscribe func()
	)
	begin := func(key string) error {
		u := &model.LogicalUpload{
			ID:          key,
			Key:         key,
			FileName:    file.Name(),
			ContentType: file.ContentType(),
			Size:        file.Size(),
			Status:      model.UploadStatusUploading,
			Progress:    0,
			Source:      model.UploadSourceLocal,
			Strategy:    strategy,
		}
		// The entry under key belongs to another upload and is left alone.
		if err := d.registry.Add(u); err != nil {
			return newAuthorizationError("begin", "Duplicate upload key", err)
		}
		id = key
		unsubscribe = d.bus.Subscribe(key, d.onProgress)
		if snapshot, ok := d.registry.Get(key); ok {
			d.observer.OnOptimisticallyAdded(snapshot)
		}
		return nil
	}

	_, _, err := d.selector.Upload(ctx, file, begin)
	if unsubscribe != nil {
		unsubscribe()
	}
	duration := time.Since(start)

	if err != nil {
		d.metrics.RecordUpload(string(strategy), string(model.UploadStatusFailed), 0, duration)
		if id == "" {
			d.logger.Warn("upload not started",
				zap.String("file", file.Name()),
				zap.String("strategy", string(strategy)),
				zap.Error(err),
			)
			return nil, err
		}

		msg := Message(err)
		_ = d.registry.MarkFailed(id, msg)
		d.observer.OnFailed(id, msg)
		d.logger.Warn("upload failed",
			zap.String("key", id),
			zap.String("strategy", string(strategy)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		snapshot, _ := d.registry.Get(id)
		return snapshot, err
	}

	snapshot, _ := d.registry.Get(id)
	_ = d.registry.MarkSucceeded(id, "")
	if snapshot != nil {
		snapshot.Status = model.UploadStatusSucceeded
		snapshot.Progress = 100
	}
	if r, ok := file.(Releaser); ok {
		r.Release()
	}
	d.observer.OnSucceeded(id)
	d.metrics.RecordUpload(string(strategy), string(model.UploadStatusSucceeded), file.Size(), duration)
	d.logger.Info("upload succeeded",
		zap.String("key", id),
		zap.String("strategy", string(strategy)),
		zap.Int64("size", file.Size()),
		zap.Duration("duration", duration),
	)
	return snapshot, nil
}

// Refresh lists stored media and reconciles it into the registry.
func (d *Domain) Refresh(ctx context.Context) error {
	objects, err := d.authorizer.ListMedia(ctx)
	if err != nil {
		return fmt.Errorf("list media: %w", err)
	}
	d.registry.MergeRemote(objects)
	return nil
}

// Wait blocks until every submitted upload has finished.
func (d *Domain) Wait() {
	d.inflight.Wait()
}

// Shutdown stops accepting new submissions and waits for in-flight uploads
// until ctx is done.
func (d *Domain) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closing = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.registry.Close()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for uploads: %w", ctx.Err())
	}
}

func (d *Domain) onProgress(ev model.ProgressEvent) {
	if d.registry.SetProgress(ev.UploadID, ev.Percentage) {
		d.observer.OnProgress(ev.UploadID, ev.Percentage)
	}
}

func (d *Domain) acquire(ctx context.Context) error {
	if d.semaphore == nil {
		return nil
	}
	select {
	case d.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Domain) release() {
	if d.semaphore != nil {
		<-d.semaphore
	}
}

