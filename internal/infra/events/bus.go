package events

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uniedit/mediaupload/internal/model"
	"github.com/uniedit/mediaupload/internal/port/outbound"
)

// Wildcard subscribes to events for every upload.
const Wildcard = "*"

// ProgressBus is a synchronous publish/subscribe channel for upload progress.
// Events are dispatched to the subscribers present at publish time; late
// subscribers never see earlier events.
type ProgressBus struct {
	mu          sync.RWMutex
	subscribers map[string]map[uuid.UUID]func(model.ProgressEvent)
	logger      *zap.Logger
}

// NewProgressBus creates a new progress bus.
func NewProgressBus(logger *zap.Logger) *ProgressBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressBus{
		subscribers: make(map[string]map[uuid.UUID]func(model.ProgressEvent)),
		logger:      logger.Named("progress-bus"),
	}
}

// Subscribe registers handler for uploadID, or for all uploads with Wildcard.
func (b *ProgressBus) Subscribe(uploadID string, handler func(model.ProgressEvent)) func() {
	id := uuid.New()

	b.mu.Lock()
	subs, ok := b.subscribers[uploadID]
	if !ok {
		subs = make(map[uuid.UUID]func(model.ProgressEvent))
		b.subscribers[uploadID] = subs
	}
	subs[id] = handler
	b.mu.Unlock()

	b.logger.Debug("progress subscriber added", zap.String("upload_id", uploadID))

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subscribers[uploadID]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.subscribers, uploadID)
				}
			}
		})
	}
}

// Publish dispatches event to matching subscribers synchronously.
// A panicking handler is logged and does not stop delivery to the others.
func (b *ProgressBus) Publish(event model.ProgressEvent) {
	b.mu.RLock()
	handlers := make([]func(model.ProgressEvent), 0, len(b.subscribers[event.UploadID])+len(b.subscribers[Wildcard]))
	for _, h := range b.subscribers[event.UploadID] {
		handlers = append(handlers, h)
	}
	if event.UploadID != Wildcard {
		for _, h := range b.subscribers[Wildcard] {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.dispatch(handler, event)
	}
}

// SubscriberCount returns the number of subscribers for uploadID.
func (b *ProgressBus) SubscriberCount(uploadID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[uploadID])
}

func (b *ProgressBus) dispatch(handler func(model.ProgressEvent), event model.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("progress handler panicked",
				zap.String("upload_id", event.UploadID),
				zap.Int("percentage", event.Percentage),
				zap.Any("panic", r),
			)
		}
	}()
	handler(event)
}

// Compile-time check
var _ outbound.ProgressBusPort = (*ProgressBus)(nil)
