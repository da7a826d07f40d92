package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time check: Bus implements domain.EventPublisher.
var _ domain.EventPublisher = (*Bus)(nil)

// Bus is a synchronous in-process event dispatcher. Handlers run in
// registration order on the publisher's goroutine. Every handler runs even
// when an earlier one fails or panics.
type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.EventName][]domain.Handler
	logger   *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[domain.EventName][]domain.Handler),
		logger:   logger,
	}
}

// Subscribe registers h for events named name.
func (b *Bus) Subscribe(name domain.EventName, h domain.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// SubscribeAll registers h for every event the platform publishes.
func (b *Bus) SubscribeAll(h domain.Handler) {
	for _, name := range domain.EventNames {
		b.Subscribe(name, h)
	}
}

// Publish dispatches ev to its subscribers. Handler failures are collected into
// a *domain.DispatchError; they never affect state the publisher already
// committed.
func (b *Bus) Publish(ctx context.Context, ev domain.Event) error {
	b.mu.RLock()
	handlers := slices.Clone(b.handlers[ev.Name()])
	b.mu.RUnlock()

	var failures []domain.HandlerFailure
	for i, h := range handlers {
		if err := invoke(ctx, h, ev); err != nil {
			b.logger.WarnContext(ctx, "event handler failed",
				"event", ev.Name(),
				"handler", i,
				"error", err,
			)
			failures = append(failures, domain.HandlerFailure{Event: ev.Name(), Handler: i, Err: err})
		}
	}

	if len(failures) > 0 {
		return &domain.DispatchError{Failures: failures}
	}
	return nil
}

func invoke(ctx context.Context, h domain.Handler, ev domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, ev)
}
