package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Notifier delivers a flattened event to the downstream notification system.
type Notifier interface {
	Notify(ctx context.Context, summary domain.EventSummary) error
}

// LogNotifier writes events to the structured log. It is the default sink.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, s domain.EventSummary) error {
	slog.InfoContext(ctx, "event notification",
		"event", s.Event,
		"resource", s.Resource,
		"tenant_id", s.TenantID,
		"status", s.Status,
	)
	return nil
}

// EventWorker processes event jobs from the River queue. A failed delivery
// returns an error so River retries the job.
type EventWorker struct {
	river.WorkerDefaults[EventJobArgs]
	notifier Notifier
}

// Work processes a single event job.
func (w *EventWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	slog.InfoContext(ctx, "processing event",
		"event", job.Args.Event,
		"tenant_id", job.Args.TenantID,
		"resource", job.Args.Resource,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return w.notifier.Notify(ctx, job.Args.EventSummary)
}
