package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// EventJobArgs carries a flattened event to the notification worker. River
// serializes this as JSON into its job queue table, so the worker never needs
// to query the database.
type EventJobArgs struct {
	domain.EventSummary
}

// Kind returns the unique job type identifier used by River's job routing.
func (EventJobArgs) Kind() string { return "event.published" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Relay hands every bus event to the durable River queue. It runs as an
// ordinary bus subscriber, after the publisher's transaction has committed.
type Relay struct {
	client *Client
}

// NewRelay creates a relay backed by the given River client.
func NewRelay(client *Client) *Relay {
	return &Relay{client: client}
}

// Handle enqueues ev as an async job. It satisfies domain.Handler.
func (r *Relay) Handle(ctx context.Context, ev domain.Event) error {
	_, err := r.client.Insert(ctx, EventJobArgs{EventSummary: domain.Summarize(ev)}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing %s job: %w", ev.Name(), err)
	}
	return nil
}
