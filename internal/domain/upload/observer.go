package upload

import (
	"time"

	"github.com/uniedit/mediaupload/internal/model"
)

// Observer receives the caller-facing upload notifications.
type Observer interface {
	OnProgress(uploadID string, percentage int)
	OnOptimisticallyAdded(upload *model.LogicalUpload)
	OnSucceeded(uploadID string)
	OnFailed(uploadID string, message string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Progress            func(uploadID string, percentage int)
	OptimisticallyAdded func(upload *model.LogicalUpload)
	Succeeded           func(uploadID string)
	Failed              func(uploadID string, message string)
}

func (o ObserverFuncs) OnProgress(uploadID string, percentage int) {
	if o.Progress != nil {
		o.Progress(uploadID, percentage)
	}
}

func (o ObserverFuncs) OnOptimisticallyAdded(upload *model.LogicalUpload) {
	if o.OptimisticallyAdded != nil {
		o.OptimisticallyAdded(upload)
	}
}

func (o ObserverFuncs) OnSucceeded(uploadID string) {
	if o.Succeeded != nil {
		o.Succeeded(uploadID)
	}
}

func (o ObserverFuncs) OnFailed(uploadID string, message string) {
	if o.Failed != nil {
		o.Failed(uploadID, message)
	}
}

// MetricsRecorder records upload outcomes.
type MetricsRecorder interface {
	RecordUpload(strategy, status string, bytes int64, duration time.Duration)
	RecordPart(status string)
}

type noopMetrics struct{}

func (noopMetrics) RecordUpload(string, string, int64, time.Duration) {}
func (noopMetrics) RecordPart(string)                                 {}
