// Package realtime turns store changes into coarse invalidation signals.
// Subscribers never receive row data: a signal only means "refetch this
// topic".
package realtime

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/easyorder/api/internal/cache"
	"github.com/easyorder/api/internal/enum"
	"go.uber.org/zap"
)

// Topics is every topic the bridge serves.
var Topics = []string{enum.TopicOrders, enum.TopicOrderItems, enum.TopicTables}

// Reasons attached to signals, for logging on the receiving side.
const (
	ReasonChange    = "change"
	ReasonWrite     = "write"
	ReasonResync    = "resync"
	ReasonReconcile = "reconcile"
	ReasonReconnect = "reconnect"
)

// Signal tells a subscriber that a topic's data may have changed.
type Signal struct {
	Topic  string `json:"topic"`
	Reason string `json:"reason"`
}

// ChangeEvent is one row-level change observed in the store.
type ChangeEvent struct {
	Table string `json:"table"`
	Op    string `json:"op"`
}

// fanOut maps a changed table to the topics whose views depend on it.
// Orders carry table occupancy; tables carry the current order id.
var fanOut = map[string][]string{
	enum.TopicOrders:     {enum.TopicOrders, enum.TopicTables},
	enum.TopicOrderItems: {enum.TopicOrders, enum.TopicOrderItems},
	enum.TopicTables:     {enum.TopicTables, enum.TopicOrders},
}

// viewKeys maps a topic to the server-side cache entries built from it.
var viewKeys = map[string][]string{
	enum.TopicOrders:     {cache.KeyActiveOrders},
	enum.TopicOrderItems: {cache.KeyActiveOrders},
	enum.TopicTables:     {cache.KeyTables},
}

// Subscription receives signals for a fixed set of topics on C. Signals for
// a topic that is already pending are coalesced into one, since a pending
// signal already means "refetch".
type Subscription struct {
	C <-chan Signal

	out    chan Signal
	topics []string
	bridge *Bridge

	mu      sync.Mutex
	pending map[string]string // topic -> reason
	order   []string
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Topics returns the subscribed topics.
func (s *Subscription) Topics() []string { return s.topics }

// Unsubscribe stops delivery and closes C. Pending signals are discarded.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bridge.remove(s)
		close(s.done)
	})
}

func (s *Subscription) enqueue(topic, reason string) {
	s.mu.Lock()
	if _, ok := s.pending[topic]; !ok {
		s.order = append(s.order, topic)
	}
	s.pending[topic] = reason
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) drain() []Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Signal, 0, len(s.order))
	for _, t := range s.order {
		out = append(out, Signal{Topic: t, Reason: s.pending[t]})
	}
	s.order = s.order[:0]
	clear(s.pending)
	return out
}

// pump moves pending signals to C one at a time. While it blocks on a slow
// reader, new signals keep coalescing in pending.
func (s *Subscription) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for _, sig := range s.drain() {
			select {
			case s.out <- sig:
			case <-s.done:
				return
			}
		}
	}
}

// Bridge distributes invalidation signals to subscribers and drops the
// server-side views they invalidate.
type Bridge struct {
	views  cache.Store
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewBridge creates a Bridge. views may be nil when no server-side cache is
// used.
func NewBridge(views cache.Store, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		views:  views,
		logger: logger.Named("bridge"),
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe registers interest in topics. Unknown topics are ignored; no
// topics means all of them.
func (b *Bridge) Subscribe(topics ...string) *Subscription {
	var want []string
	for _, t := range topics {
		if slices.Contains(Topics, t) && !slices.Contains(want, t) {
			want = append(want, t)
		}
	}
	if len(want) == 0 {
		want = slices.Clone(Topics)
	}

	out := make(chan Signal)
	sub := &Subscription{
		C:       out,
		out:     out,
		topics:  want,
		bridge:  b,
		pending: make(map[string]string, len(want)),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go sub.pump()

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Bridge) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
}

// HandleChange applies the topic fan-out for a store change.
func (b *Bridge) HandleChange(ctx context.Context, ev ChangeEvent) {
	topics, ok := fanOut[ev.Table]
	if !ok {
		b.logger.Debug("ignoring change for unknown table", zap.String("table", ev.Table))
		return
	}
	b.publish(ctx, topics, ReasonChange)
}

// Invalidate signals a write this instance committed itself.
func (b *Bridge) Invalidate(ctx context.Context, topics ...string) {
	b.publish(ctx, topics, ReasonWrite)
}

// Resync invalidates every topic, used after the change feed may have
// dropped events.
func (b *Bridge) Resync(ctx context.Context, reason string) {
	b.publish(ctx, Topics, reason)
}

// RunReconciler resyncs every interval until ctx is done. It bounds how long
// a terminal can miss a dropped notification.
func (b *Bridge) RunReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Resync(ctx, ReasonReconcile)
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bridge) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bridge) publish(ctx context.Context, topics []string, reason string) {
	// Views go before the signal so a triggered refetch misses the cache.
	if b.views != nil {
		var keys []string
		for _, t := range topics {
			for _, k := range viewKeys[t] {
				if !slices.Contains(keys, k) {
					keys = append(keys, k)
				}
			}
		}
		if len(keys) > 0 {
			if err := b.views.Delete(ctx, keys...); err != nil {
				b.logger.Warn("drop cached views failed", zap.Strings("keys", keys), zap.Error(err))
			}
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		for _, t := range topics {
			if slices.Contains(sub.topics, t) {
				sub.enqueue(t, reason)
			}
		}
	}
}
