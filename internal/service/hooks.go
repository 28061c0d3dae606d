package service

import (
	"context"
	"time"

	"github.com/easyorder/api/internal/events"
	"go.uber.org/zap"
)

const postCommitTimeout = 5 * time.Second

// Notifier receives the topics touched by a committed write.
// Satisfied by *realtime.Bridge.
type Notifier interface {
	Invalidate(ctx context.Context, topics ...string)
}

type nopNotifier struct{}

func (nopNotifier) Invalidate(context.Context, ...string) {}

// hooks are the post-commit collaborators shared by the services.
type hooks struct {
	notifier  Notifier
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a service.
type Option func(*hooks)

// WithNotifier attaches the change notification bridge.
func WithNotifier(n Notifier) Option {
	return func(h *hooks) { h.notifier = n }
}

// WithPublisher attaches an outbound event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(h *hooks) { h.publisher = p }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *hooks) { h.logger = l }
}

func newHooks(name string, opts []Option) hooks {
	h := hooks{
		notifier:  nopNotifier{},
		publisher: events.NopPublisher{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&h)
	}
	h.logger = h.logger.Named(name)
	return h
}

// afterCommit fans a committed write out to the bridge and the event
// publisher. Failures are logged only; the write is already durable.
func (h *hooks) afterCommit(ctx context.Context, topics []string, evs ...events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postCommitTimeout)
	defer cancel()

	h.notifier.Invalidate(ctx, topics...)

	for _, ev := range evs {
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = h.now().UTC()
		}
		if err := h.publisher.Publish(ctx, ev); err != nil {
			h.logger.Warn("publish event failed",
				zap.String("type", ev.Type),
				zap.Int64("order_id", ev.OrderID),
				zap.Int64("table_id", ev.TableID),
				zap.Error(err))
		}
	}
}
