package store

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// Event types carried on the per-project events channel.
const (
	EventTaskCreated      = "task_created"
	EventTaskUpdated      = "task_updated"
	EventTaskMoved        = "task_moved"
	EventSpecCreated      = "spec_created"
	EventSpecUpdated      = "spec_updated"
	EventContextUpdated   = "context_updated"
	EventDecisionAdded    = "decision_added"
	EventMemoryAdded      = "memory_added"
	EventObservationAdded = "observation_added"
	EventBoardRefresh     = "board_refresh"
)

// Event is the typed message published on <P>events after every committed
// service-layer write. Delivery is plain Redis pub/sub: an event published
// while no subscriber is connected is lost and never redelivered.
// Subscribers must be idempotent.
type Event struct {
	Type       string            `json:"type"`
	Project    string            `json:"project"`
	EntityKind string            `json:"entity_kind,omitempty"`
	EntityID   string            `json:"entity_id,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
}

// Publish sends an event on the project's channel. Publish failures are
// reported but must not roll back the primary write that triggered them —
// callers log and continue (subscribers reconcile via rebuild).
func (s *Store) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return cwerr.Wrap(cwerr.Internal, err, "marshaling event")
	}
	if err := s.rdb.Publish(ctx, EventsChannel(ev.Project), data).Err(); err != nil {
		return cwerr.Wrap(cwerr.Unavailable, err, "publishing %s event", ev.Type)
	}
	return nil
}

// Subscription is a live subscription to a project's event channel.
type Subscription struct {
	pubsub *redis.PubSub
	events chan Event
}

// Events returns the channel on which decoded events arrive. The channel
// closes when the subscription is closed or the connection drops.
func (sub *Subscription) Events() <-chan Event { return sub.events }

// Close tears the subscription down.
func (sub *Subscription) Close() error { return sub.pubsub.Close() }

// Subscribe opens a subscription to the project's events channel and
// starts a goroutine decoding messages. Malformed payloads are skipped.
func (s *Store) Subscribe(ctx context.Context, project string) (*Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, EventsChannel(project))
	// Force the subscribe round-trip so connection errors surface here.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, cwerr.Wrap(cwerr.Unavailable, err, "subscribing to events")
	}

	sub := &Subscription{pubsub: pubsub, events: make(chan Event, 64)}
	go func() {
		defer close(sub.events)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			select {
			case sub.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return sub, nil
}
