package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniedit/mediaupload/internal/model"
)

func newLocal(id string) *model.LogicalUpload {
	return &model.LogicalUpload{
		ID:     id,
		Key:    id,
		Status: model.UploadStatusUploading,
		Source: model.UploadSourceLocal,
	}
}

func TestRegistry_AddAndGet(t *testing.T) {
	r := NewRegistry(time.Hour, nil)

	require.NoError(t, r.Add(newLocal("a")))
	assert.ErrorIs(t, r.Add(newLocal("a")), ErrUploadExists)

	u, ok := r.Get("a")
	require.True(t, ok)
	assert.False(t, u.CreatedAt.IsZero())

	// Returned values are copies.
	u.Progress = 50
	again, _ := r.Get("a")
	assert.Equal(t, 0, again.Progress)
}

func TestRegistry_SetProgressIsMonotonic(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	require.NoError(t, r.Add(newLocal("a")))

	assert.True(t, r.SetProgress("a", 10))
	assert.False(t, r.SetProgress("a", 5))
	assert.False(t, r.SetProgress("a", 10))
	assert.True(t, r.SetProgress("a", 40))
	assert.False(t, r.SetProgress("missing", 50))

	u, _ := r.Get("a")
	assert.Equal(t, 40, u.Progress)

	require.NoError(t, r.MarkFailed("a", "boom"))
	assert.False(t, r.SetProgress("a", 90))
}

func TestRegistry_FailedEntriesAreRetained(t *testing.T) {
	r := NewRegistry(time.Millisecond, nil)
	require.NoError(t, r.Add(newLocal("a")))
	require.NoError(t, r.MarkFailed("a", "Upload failed with status 500"))

	time.Sleep(20 * time.Millisecond)

	u, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, model.UploadStatusFailed, u.Status)
	assert.Equal(t, "Upload failed with status 500", u.Error)
}

func TestRegistry_SucceededEntriesRetire(t *testing.T) {
	r := NewRegistry(10*time.Millisecond, nil)
	require.NoError(t, r.Add(newLocal("a")))

	var removed []string
	done := make(chan struct{})
	r.Subscribe(func(ev RegistryEvent) {
		if ev.Type == RegistryEventRemoved {
			removed = append(removed, ev.Upload.ID)
			close(done)
		}
	})

	require.NoError(t, r.MarkSucceeded("a", "https://cdn/a"))
	u, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, 100, u.Progress)
	assert.Equal(t, "https://cdn/a", u.URL)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("entry was not retired")
	}
	assert.Equal(t, []string{"a"}, removed)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_MarkUnknown(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	assert.ErrorIs(t, r.MarkSucceeded("x", ""), ErrUploadNotFound)
	assert.ErrorIs(t, r.MarkFailed("x", "m"), ErrUploadNotFound)
	assert.False(t, r.Remove("x"))
}

func TestRegistry_MergeRemote(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	require.NoError(t, r.Add(newLocal("uploading.png")))

	old := time.Now().Add(-time.Hour)
	r.MergeRemote([]*model.MediaObject{
		{Key: "uploading.png", URL: "https://cdn/uploading.png", Size: 5},
		{Key: "stale.png", URL: "https://cdn/stale.png", Size: 7, LastModified: &old},
	})

	local, ok := r.Get("uploading.png")
	require.True(t, ok)
	assert.Equal(t, model.UploadSourceLocal, local.Source)
	assert.Equal(t, model.UploadStatusUploading, local.Status)

	remote, ok := r.Get("stale.png")
	require.True(t, ok)
	assert.Equal(t, model.UploadSourceRemote, remote.Source)
	assert.Equal(t, 100, remote.Progress)
	assert.True(t, remote.CreatedAt.Equal(old))

	// A later listing without stale.png drops it; local entries stay.
	r.MergeRemote(nil)
	_, ok = r.Get("stale.png")
	assert.False(t, ok)
	_, ok = r.Get("uploading.png")
	assert.True(t, ok)
}

func TestRegistry_RemoteReplacedByLocal(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	r.MergeRemote([]*model.MediaObject{{Key: "a.png"}})

	require.NoError(t, r.Add(newLocal("a.png")))
	u, _ := r.Get("a.png")
	assert.Equal(t, model.UploadSourceLocal, u.Source)
}

func TestRegistry_ListNewestFirst(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		u := newLocal(id)
		u.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, r.Add(u))
	}

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "a", list[2].ID)
}

func TestRegistry_Unsubscribe(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	count := 0
	unsubscribe := r.Subscribe(func(RegistryEvent) { count++ })

	require.NoError(t, r.Add(newLocal("a")))
	unsubscribe()
	r.SetProgress("a", 10)

	assert.Equal(t, 1, count)
}
