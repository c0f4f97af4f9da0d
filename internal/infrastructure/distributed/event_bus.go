package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"selfiebooth/internal/core/ports"
	"selfiebooth/pkg/retry"
)

// envelope is the wire form of an event on the redis channel.
type envelope struct {
	InstanceID string      `json:"instance_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Event      ports.Event `json:"event"`
}

// EventBus delivers settings and subscription events to the handlers of
// this instance and, when a redis client is set, to every other instance
// listening on the same channel.
type EventBus struct {
	client     *redis.Client
	channel    string
	instanceID string
	logger     *zap.SugaredLogger

	mu       sync.RWMutex
	handlers map[uint64]func(ports.Event)
	nextID   uint64
}

// NewEventBus creates a bus. A nil client keeps events local.
func NewEventBus(client *redis.Client, keyPrefix, instanceID string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		channel:    keyPrefix + "events",
		instanceID: instanceID,
		logger:     logger,
		handlers:   make(map[uint64]func(ports.Event)),
	}
}

// Publish hands event to local handlers first, then fans it out via redis.
func (eb *EventBus) Publish(ctx context.Context, event ports.Event) error {
	eb.dispatch(event)

	if eb.client == nil {
		return nil
	}

	data, err := json.Marshal(envelope{InstanceID: eb.instanceID, Timestamp: time.Now(), Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := eb.client.Publish(ctx, eb.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("Published event", "type", event.Type, "tenant_id", event.TenantID)
	return nil
}

// Subscribe registers handler for events from every instance.
func (eb *EventBus) Subscribe(handler func(ports.Event)) (unsubscribe func()) {
	eb.mu.Lock()
	id := eb.nextID
	eb.nextID++
	eb.handlers[id] = handler
	eb.mu.Unlock()

	return func() {
		eb.mu.Lock()
		delete(eb.handlers, id)
		eb.mu.Unlock()
	}
}

func (eb *EventBus) dispatch(event ports.Event) {
	eb.mu.RLock()
	handlers := make([]func(ports.Event), 0, len(eb.handlers))
	for _, h := range eb.handlers {
		handlers = append(handlers, h)
	}
	eb.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

// Run relays events published by other instances until ctx is done.
// Without redis it just waits for ctx.
func (eb *EventBus) Run(ctx context.Context) error {
	if eb.client == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	pubsub := eb.client.Subscribe(ctx, eb.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", eb.channel, err)
	}
	eb.logger.Infow("Event bus listening", "channel", eb.channel, "instance_id", eb.instanceID)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("event channel %s closed", eb.channel)
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				eb.logger.Warnw("Failed to unmarshal event", "error", err, "payload", msg.Payload)
				continue
			}
			if env.InstanceID == eb.instanceID {
				continue
			}
			eb.dispatch(env.Event)
		}
	}
}

// Listen keeps Run going until ctx is done. Every failed or dropped
// subscription is retried with policy; when the attempts run out it waits
// policy.MaxDelay and starts over.
func (eb *EventBus) Listen(ctx context.Context, policy retry.Config) {
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		eb.logger.Warnw("Event bus subscription lost, resubscribing",
			"channel", eb.channel, "attempt", attempt, "delay", delay, "error", err)
	}

	for {
		err := retry.Do(ctx, policy, eb.Run)
		if ctx.Err() != nil {
			return
		}
		eb.logger.Errorw("Event bus keeps failing", "channel", eb.channel, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(policy.MaxDelay):
		}
	}
}
