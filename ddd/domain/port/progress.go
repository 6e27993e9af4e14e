package port

import (
	"context"

	"video-assembly-service/ddd/domain/entity"
)

// StatusSink forwards job status writes to secondary systems (cache, broker, archive).
// Sinks are best-effort; an error never blocks the status store.
type StatusSink interface {
	Name() string
	Publish(ctx context.Context, job *entity.AssemblyJob) error
}
