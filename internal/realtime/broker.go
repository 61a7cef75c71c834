// Package realtime delivers row-change notifications over Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/models"
)

const channelPrefix = "realtime:"

// Channel returns the pub/sub channel for a table
func Channel(table string) string {
	return channelPrefix + table
}

// tableFromChannel is the inverse of Channel
func tableFromChannel(channel string) string {
	return strings.TrimPrefix(channel, channelPrefix)
}

// Feed is a live stream of change events. Close must be called exactly when the consumer is done.
type Feed interface {
	Events() <-chan *models.ChangeEvent
	Close() error
}

// Broker publishes and subscribes to row-change notifications
type Broker struct {
	client *redis.Client
	logger *logging.Logger
}

// NewBroker creates a broker over a Redis client
func NewBroker(client *redis.Client, logger *logging.Logger) *Broker {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Broker{client: client, logger: logger.WithField("component", "realtime")}
}

// Publish sends an event on its table's channel. ID and OccurredAt are filled when empty.
func (b *Broker) Publish(ctx context.Context, event *models.ChangeEvent) error {
	if event.Table == "" {
		return fmt.Errorf("change event has no table")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := b.client.Publish(ctx, Channel(event.Table), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// Subscribe listens to the given tables. It returns once Redis has confirmed every
// channel, so events published after Subscribe returns are never missed.
func (b *Broker) Subscribe(ctx context.Context, tables ...string) (*Subscription, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("subscribe needs at least one table")
	}

	channels := make([]string, len(tables))
	for i, t := range tables {
		channels[i] = Channel(t)
	}

	pubsub := b.client.Subscribe(ctx, channels...)

	confirmed := make(map[string]bool, len(channels))
	for len(confirmed) < len(channels) {
		msg, err := pubsub.Receive(ctx)
		if err != nil {
			_ = pubsub.Close()
			return nil, fmt.Errorf("failed to subscribe: %w", err)
		}
		if sub, ok := msg.(*redis.Subscription); ok && sub.Kind == "subscribe" {
			confirmed[sub.Channel] = true
		}
	}

	s := &Subscription{
		pubsub:    pubsub,
		events:    make(chan *models.ChangeEvent, 64),
		done:      make(chan struct{}),
		confirmed: confirmed,
		logger:    b.logger.WithField("channels", channels),
	}
	go s.listen()

	return s, nil
}

// Subscription is a live pub/sub subscription
type Subscription struct {
	pubsub    *redis.PubSub
	events    chan *models.ChangeEvent
	done      chan struct{}
	closeOnce sync.Once
	confirmed map[string]bool
	logger    *logging.Logger
}

// Events returns the event stream. It is closed after Close.
func (s *Subscription) Events() <-chan *models.ChangeEvent {
	return s.events
}

// Close unsubscribes. Calling it more than once is safe.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

func (s *Subscription) listen() {
	defer close(s.events)

	ch := s.pubsub.ChannelWithSubscriptions(redis.WithChannelSize(128))
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if event := s.dispatch(msg); event != nil {
				select {
				case s.events <- event:
				case <-s.done:
					return
				}
			}
		}
	}
}

// dispatch converts a raw pub/sub message into a change event.
// A repeated subscribe confirmation means go-redis reconnected and
// re-subscribed; events may have been lost in between, so it yields a resync.
func (s *Subscription) dispatch(msg interface{}) *models.ChangeEvent {
	switch m := msg.(type) {
	case *redis.Subscription:
		if m.Kind != "subscribe" {
			return nil
		}
		if !s.confirmed[m.Channel] {
			s.confirmed[m.Channel] = true
			return nil
		}
		s.logger.WithField("channel", m.Channel).Warn("Realtime subscription reconnected")
		return &models.ChangeEvent{
			ID:         uuid.New().String(),
			Table:      tableFromChannel(m.Channel),
			Op:         models.OpResync,
			OccurredAt: time.Now().UTC(),
		}
	case *redis.Message:
		var event models.ChangeEvent
		if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
			s.logger.WithError(err).Warn("Failed to parse change event")
			return nil
		}
		if event.Table == "" {
			event.Table = tableFromChannel(m.Channel)
		}
		return &event
	default:
		return nil
	}
}
