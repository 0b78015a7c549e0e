package metrics

import (
	"context"
	"time"
)

// Recorder persists routed telemetry so charts survive a restart.
type Recorder interface {
	Record(ctx context.Context, sample *Sample) error
	Latest(ctx context.Context) ([]Sample, error)
	Close() error
}

// Repository is the storage behind a Recorder.
type Repository interface {
	Record(sample *Sample) error
	Latest(ctx context.Context) ([]Sample, error)
	Close() error
}

// Sample is one routed telemetry record. Kind is the telemetry kind name
// ("distribution", "counter" or "unknown"); Category is empty for counters.
type Sample struct {
	ReceivedAt time.Time
	ObservedAt time.Time
	DeviceID   string
	Kind       string
	Category   string
	Value      float64
}
