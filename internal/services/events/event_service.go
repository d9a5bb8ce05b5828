package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/common"
	"github.com/ternarybob/tasker/internal/interfaces"
)

// queueSize bounds the events buffered per subscriber before Publish blocks
const queueSize = 64

type delivery struct {
	ctx   context.Context
	event interfaces.TaskEvent
	done  chan<- error // nil for async publishes
}

// subscriber owns a FIFO queue drained by a single worker, so each handler sees events in publish order
type subscriber struct {
	id      interfaces.Subscription
	types   map[interfaces.EventType]bool
	handler interfaces.EventHandler
	queue   chan delivery
}

func (s *subscriber) wants(eventType interfaces.EventType) bool {
	return s.types[eventType]
}

// Bus fans task events out to subscribers
type Bus struct {
	mu          sync.RWMutex
	subscribers []*subscriber
	nextID      interfaces.Subscription
	closed      bool
	workers     sync.WaitGroup
	logger      arbor.ILogger
	clock       func() time.Time
}

func NewService(logger arbor.ILogger) *Bus {
	return &Bus{
		logger: logger,
		clock:  time.Now,
	}
}

func (b *Bus) Subscribe(handler interfaces.EventHandler, eventTypes ...interfaces.EventType) (interfaces.Subscription, error) {
	if handler == nil {
		return 0, fmt.Errorf("handler cannot be nil")
	}
	if len(eventTypes) == 0 {
		eventTypes = interfaces.AllTaskEvents
	}

	sub := &subscriber{
		types:   make(map[interfaces.EventType]bool, len(eventTypes)),
		handler: handler,
		queue:   make(chan delivery, queueSize),
	}
	for _, t := range eventTypes {
		sub.types[t] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, interfaces.ErrEventBusClosed
	}

	b.nextID++
	sub.id = b.nextID
	b.subscribers = append(b.subscribers, sub)

	b.workers.Add(1)
	common.SafeGo(b.logger, fmt.Sprintf("events:subscriber-%d", sub.id), func() {
		defer b.workers.Done()
		b.drain(sub)
	})

	b.logger.Debug().
		Int64("subscription", int64(sub.id)).
		Int("event_types", len(sub.types)).
		Int("subscriber_count", len(b.subscribers)).
		Msg("Event handler subscribed")

	return sub.id, nil
}

// Unsubscribe stops new deliveries; events already queued for the subscriber still run
func (b *Bus) Unsubscribe(id interfaces.Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub.id == id {
			b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
			close(sub.queue)
			b.logger.Debug().Int64("subscription", int64(id)).Msg("Event handler unsubscribed")
			return nil
		}
	}
	return fmt.Errorf("unknown subscription: %d", id)
}

func (b *Bus) Publish(ctx context.Context, event interfaces.TaskEvent) error {
	_, err := b.enqueue(context.WithoutCancel(ctx), event, false)
	return err
}

// PublishSync must not be called from inside a handler of the same bus
func (b *Bus) PublishSync(ctx context.Context, event interfaces.TaskEvent) error {
	results, err := b.enqueue(ctx, event, true)
	if err != nil {
		return err
	}

	errs := make([]error, 0, len(results))
	for _, done := range results {
		errs = append(errs, <-done)
	}

	if err := errors.Join(errs...); err != nil {
		b.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Event handlers failed")
		return fmt.Errorf("%s handlers failed: %w", event.Type, err)
	}
	return nil
}

// Close rejects further publishing, lets every queue drain and waits for the workers
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.queue)
	}
	b.subscribers = nil
	b.mu.Unlock()

	b.workers.Wait()
	b.logger.Debug().Msg("Event bus closed")
	return nil
}

// enqueue stamps the event and queues it for every matching subscriber. The read lock is
// held while sending so that Unsubscribe and Close cannot close a queue mid-send.
func (b *Bus) enqueue(ctx context.Context, event interfaces.TaskEvent, wait bool) ([]chan error, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = b.clock().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, interfaces.ErrEventBusClosed
	}

	var results []chan error
	delivered := 0
	for _, sub := range b.subscribers {
		if !sub.wants(event.Type) {
			continue
		}
		d := delivery{ctx: ctx, event: event}
		if wait {
			done := make(chan error, 1)
			d.done = done
			results = append(results, done)
		}
		sub.queue <- d
		delivered++
	}

	b.logger.Debug().
		Str("event_type", string(event.Type)).
		Int("subscriber_count", delivered).
		Msg("Publishing event")

	return results, nil
}

func (b *Bus) drain(sub *subscriber) {
	for d := range sub.queue {
		err := b.deliver(d.ctx, sub.handler, d.event)
		if d.done != nil {
			d.done <- err
			continue
		}
		if err != nil {
			b.logger.Error().Err(err).Str("event_type", string(d.event.Type)).Msg("Event handler failed")
		}
	}
}

func (b *Bus) deliver(ctx context.Context, handler interfaces.EventHandler, event interfaces.TaskEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s handler: %v", event.Type, r)
		}
	}()
	return handler(ctx, event)
}
