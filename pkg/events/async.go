package events

import (
	"context"
	"time"

	"github.com/inkwell-hq/inkwell/pkg/async"
	"github.com/inkwell-hq/inkwell/pkg/resources"
)

const recordTimeout = 10 * time.Second

// AsyncRecorder moves event writes off the request path. Reads go straight
// to the wrapped recorder.
type AsyncRecorder struct {
	inner Recorder
}

// NewAsyncRecorder wraps a recorder so Record returns immediately
func NewAsyncRecorder(inner Recorder) *AsyncRecorder {
	return &AsyncRecorder{inner: inner}
}

func (r *AsyncRecorder) Record(ctx context.Context, event *Event) {
	async.SafeGoNoError(ctx, recordTimeout, "record-event", func(ctx context.Context) {
		r.inner.Record(ctx, event)
	})
}

func (r *AsyncRecorder) ListForResource(ctx context.Context, domain string, resourceType resources.ResourceType, resourceID string, limit int) ([]*Event, error) {
	return r.inner.ListForResource(ctx, domain, resourceType, resourceID, limit)
}
