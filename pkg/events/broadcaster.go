package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pitabwire/frame/queue"
	"github.com/rs/xid"
)

// DefaultQueueDepth is the per-subscriber delivery queue size used when a
// broadcaster is created with a non-positive depth.
const DefaultQueueDepth = 64

// Broadcaster delivers typed events to all active subscribers. Each
// subscriber owns a bounded delivery queue; a full queue sheds its oldest
// undelivered event so a slow subscriber never stalls a producer or its
// peers. Events may additionally be published to an external event bus.
type Broadcaster struct {
	queueMgr queue.Manager
	queueRef string
	depth    int

	mu   sync.RWMutex
	subs map[string]*Subscription
}

// Subscription is one subscriber's handle onto the broadcaster.
type Subscription struct {
	id string
	ch chan Envelope

	mu      sync.Mutex
	closed  bool
	dropped int
}

// ID returns the subscription's handle identifier.
func (s *Subscription) ID() string { return s.id }

// C returns the channel events are delivered on. The channel is closed on
// unsubscribe.
func (s *Subscription) C() <-chan Envelope { return s.ch }

// NewBroadcaster creates a broadcaster with the given per-subscriber queue
// depth. queueMgr may be nil when no external event bus is configured.
func NewBroadcaster(queueMgr queue.Manager, queueRef string, depth int) *Broadcaster {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Broadcaster{
		queueMgr: queueMgr,
		queueRef: queueRef,
		depth:    depth,
		subs:     make(map[string]*Subscription),
	}
}

// Publish marshals data into an envelope and delivers it to every
// subscriber without blocking on any of them. Subscribers found closed are
// removed from the active set.
func (b *Broadcaster) Publish(ctx context.Context, source string, eventType EventType, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	env := Envelope{
		ID:        xid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}

	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	var dead []string
	for _, sub := range targets {
		if !sub.deliver(env) {
			dead = append(dead, sub.id)
		}
	}
	if len(dead) > 0 {
		b.mu.Lock()
		for _, id := range dead {
			delete(b.subs, id)
		}
		b.mu.Unlock()
	}

	if b.queueMgr != nil {
		return b.queueMgr.Publish(ctx, b.queueRef, env)
	}
	return nil
}

// Subscribe registers a new subscriber and returns its handle.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		id: xid.New().String(),
		ch: make(chan Envelope, b.depth),
	}
	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	sub.mu.Lock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
	sub.mu.Unlock()
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// deliver enqueues env for this subscriber, shedding the oldest queued
// event on overflow. Returns false if the subscription is closed.
func (s *Subscription) deliver(env Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	// The queue recovered after drops: let the subscriber know how many
	// events it missed before handing it anything newer.
	if s.dropped > 0 {
		if marker, err := droppedMarker(s.dropped); err == nil {
			select {
			case s.ch <- marker:
				s.dropped = 0
			default:
			}
		}
	}

	select {
	case s.ch <- env:
		return true
	default:
	}

	// Queue full: shed the oldest undelivered event for this subscriber
	// only, then retry once.
	select {
	case <-s.ch:
		s.dropped++
	default:
	}
	select {
	case s.ch <- env:
	default:
		s.dropped++
		slog.Debug("event dropped: subscriber queue full",
			slog.String("subscriber", s.id),
			slog.String("event_type", string(env.Type)))
	}
	return true
}

func droppedMarker(n int) (Envelope, error) {
	raw, err := json.Marshal(DroppedData{EventsDropped: n})
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        xid.New().String(),
		Type:      Status,
		Source:    "broadcaster",
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}
