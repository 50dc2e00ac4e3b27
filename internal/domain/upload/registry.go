package upload

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uniedit/mediaupload/internal/model"
)

// RegistryEventType describes a registry change.
type RegistryEventType string

const (
	RegistryEventAdded   RegistryEventType = "added"
	RegistryEventUpdated RegistryEventType = "updated"
	RegistryEventRemoved RegistryEventType = "removed"
)

// RegistryEvent is delivered to registry subscribers after each change.
type RegistryEvent struct {
	Type   RegistryEventType
	Upload *model.LogicalUpload
}

// Registry is the in-memory set of logical uploads keyed by identifier.
// Local uploads and remote objects share one mapping, told apart by Source.
type Registry struct {
	mu          sync.RWMutex
	entries     map[string]*model.LogicalUpload
	timers      map[string]*time.Timer
	subscribers map[uuid.UUID]func(RegistryEvent)
	retireDelay time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewRegistry creates a registry. Succeeded local uploads are removed after
// retireDelay; zero removes them immediately.
func NewRegistry(retireDelay time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries:     make(map[string]*model.LogicalUpload),
		timers:      make(map[string]*time.Timer),
		subscribers: make(map[uuid.UUID]func(RegistryEvent)),
		retireDelay: retireDelay,
		now:         time.Now,
		logger:      logger.Named("upload-registry"),
	}
}

// Add registers a new upload. A remote entry with the same id is replaced;
// an existing local entry is not.
func (r *Registry) Add(u *model.LogicalUpload) error {
	r.mu.Lock()
	if existing, ok := r.entries[u.ID]; ok && existing.Source == model.UploadSourceLocal {
		r.mu.Unlock()
		return ErrUploadExists
	}
	now := r.now()
	entry := u.Clone()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	r.entries[entry.ID] = entry
	snapshot := entry.Clone()
	r.mu.Unlock()

	r.notify(RegistryEvent{Type: RegistryEventAdded, Upload: snapshot})
	return nil
}

// Get returns a copy of the upload with the given id.
func (r *Registry) Get(id string) (*model.LogicalUpload, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

// List returns copies of all entries, newest first.
func (r *Registry) List() []*model.LogicalUpload {
	r.mu.RLock()
	out := make([]*model.LogicalUpload, 0, len(r.entries))
	for _, u := range r.entries {
		out = append(out, u.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// SetProgress records a new percentage for an uploading entry. It returns
// false, leaving the entry untouched, when the value would not increase
// progress or the entry is no longer uploading.
func (r *Registry) SetProgress(id string, percentage int) bool {
	r.mu.Lock()
	u, ok := r.entries[id]
	if !ok || u.Status != model.UploadStatusUploading || percentage <= u.Progress {
		r.mu.Unlock()
		return false
	}
	if percentage > 100 {
		percentage = 100
	}
	u.Progress = percentage
	u.UpdatedAt = r.now()
	snapshot := u.Clone()
	r.mu.Unlock()

	r.notify(RegistryEvent{Type: RegistryEventUpdated, Upload: snapshot})
	return true
}

// MarkSucceeded moves an entry to succeeded at 100% and schedules its removal.
func (r *Registry) MarkSucceeded(id, url string) error {
	r.mu.Lock()
	u, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return ErrUploadNotFound
	}
	u.Status = model.UploadStatusSucceeded
	u.Progress = 100
	u.Error = ""
	if url != "" {
		u.URL = url
	}
	u.UpdatedAt = r.now()
	snapshot := u.Clone()
	r.scheduleRetireLocked(id)
	r.mu.Unlock()

	r.notify(RegistryEvent{Type: RegistryEventUpdated, Upload: snapshot})
	return nil
}

// MarkFailed moves an entry to failed. Failed entries are kept until removed.
func (r *Registry) MarkFailed(id, message string) error {
	r.mu.Lock()
	u, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return ErrUploadNotFound
	}
	u.Status = model.UploadStatusFailed
	u.Error = message
	u.UpdatedAt = r.now()
	snapshot := u.Clone()
	r.mu.Unlock()

	r.notify(RegistryEvent{Type: RegistryEventUpdated, Upload: snapshot})
	return nil
}

// Remove deletes an entry. It returns false if the id was unknown.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	u, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, id)
	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
	r.mu.Unlock()

	r.notify(RegistryEvent{Type: RegistryEventRemoved, Upload: u})
	return true
}

// MergeRemote reconciles the registry with a listing of stored objects.
// Remote entries not in objects are dropped, listed objects become remote
// entries, and local entries always take precedence over remote ones.
func (r *Registry) MergeRemote(objects []*model.MediaObject) {
	var events []RegistryEvent

	r.mu.Lock()
	seen := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		if obj == nil || obj.Key == "" {
			continue
		}
		seen[obj.Key] = struct{}{}

		existing, ok := r.entries[obj.Key]
		if ok && existing.Source == model.UploadSourceLocal {
			continue
		}

		entry := &model.LogicalUpload{
			ID:       obj.Key,
			Key:      obj.Key,
			Size:     obj.Size,
			Status:   model.UploadStatusSucceeded,
			Progress: 100,
			Source:   model.UploadSourceRemote,
			URL:      obj.URL,
		}
		if obj.LastModified != nil {
			entry.CreatedAt = *obj.LastModified
			entry.UpdatedAt = *obj.LastModified
		} else if ok {
			entry.CreatedAt = existing.CreatedAt
			entry.UpdatedAt = existing.UpdatedAt
		} else {
			entry.CreatedAt = r.now()
			entry.UpdatedAt = entry.CreatedAt
		}

		r.entries[obj.Key] = entry
		if ok {
			if *existing != *entry {
				events = append(events, RegistryEvent{Type: RegistryEventUpdated, Upload: entry.Clone()})
			}
		} else {
			events = append(events, RegistryEvent{Type: RegistryEventAdded, Upload: entry.Clone()})
		}
	}

	for id, u := range r.entries {
		if u.Source != model.UploadSourceRemote {
			continue
		}
		if _, ok := seen[id]; !ok {
			delete(r.entries, id)
			events = append(events, RegistryEvent{Type: RegistryEventRemoved, Upload: u})
		}
	}
	r.mu.Unlock()

	for _, ev := range events {
		r.notify(ev)
	}
}

// Subscribe registers fn for every change. The returned function removes it.
func (r *Registry) Subscribe(fn func(RegistryEvent)) func() {
	id := uuid.New()
	r.mu.Lock()
	r.subscribers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subscribers, id)
		r.mu.Unlock()
	}
}

// Close stops pending retirement timers.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}

func (r *Registry) scheduleRetireLocked(id string) {
	if t, ok := r.timers[id]; ok {
		t.Stop()
	}
	r.timers[id] = time.AfterFunc(r.retireDelay, func() { r.retire(id) })
}

func (r *Registry) retire(id string) {
	r.mu.Lock()
	u, ok := r.entries[id]
	if !ok || u.Status != model.UploadStatusSucceeded || u.Source != model.UploadSourceLocal {
		delete(r.timers, id)
		r.mu.Unlock()
		return
	}
	delete(r.entries, id)
	delete(r.timers, id)
	r.mu.Unlock()

	r.logger.Debug("retired upload", zap.String("id", id))
	r.notify(RegistryEvent{Type: RegistryEventRemoved, Upload: u})
}

func (r *Registry) notify(ev RegistryEvent) {
	r.mu.RLock()
	subs := make([]func(RegistryEvent), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		subs = append(subs, fn)
	}
	r.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
