package upload

import (
	"math"
	"sync"

	"github.com/uniedit/mediaupload/internal/model"
	"github.com/uniedit/mediaupload/internal/port/outbound"
)

// Percentage returns round(sent / total * 100) clamped to [0, 100].
func Percentage(sent, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(sent) / float64(total) * 100))
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// progressTracker publishes byte progress for one upload. Published values
// never decrease, and 100 is held back until complete is called so that
// 100 is only ever seen for a finished transfer.
type progressTracker struct {
	mu    sync.Mutex
	id    string
	total int64
	last  int
	bus   outbound.ProgressBusPort
}

func newProgressTracker(id string, total int64, bus outbound.ProgressBusPort) *progressTracker {
	return &progressTracker{id: id, total: total, last: -1, bus: bus}
}

// update publishes the percentage for sent cumulative bytes.
func (t *progressTracker) update(sent int64) {
	p := Percentage(sent, t.total)
	if p > 99 {
		p = 99
	}
	t.publish(p)
}

// complete publishes 100.
func (t *progressTracker) complete() {
	t.publish(100)
}

func (t *progressTracker) publish(p int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p <= t.last {
		return
	}
	t.last = p
	// Published under the lock so concurrent parts cannot reorder values.
	t.bus.Publish(model.ProgressEvent{UploadID: t.id, Percentage: p})
}
