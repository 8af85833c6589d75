package events

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Skotchmaster/storefront/pkg/logging"
)

// Sink is the transport; *kafka.Producer satisfies it.
type Sink interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// Publisher delivers domain events on a best-effort basis. The outcome of a
// checkout or catalog write never depends on the broker being reachable; a
// breaker stops us from waiting on a broker that keeps failing.
type Publisher struct {
	sink Sink
	cb   *gobreaker.CircuitBreaker[struct{}]
}

type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenFor is how long the breaker stays open before probing again.
	OpenFor time.Duration
}

func NewPublisher(sink Sink, bs BreakerSettings) *Publisher {
	if bs.ConsecutiveFailures == 0 {
		bs.ConsecutiveFailures = 5
	}
	if bs.OpenFor == 0 {
		bs.OpenFor = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "event-publisher",
		MaxRequests: 1,
		Timeout:     bs.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
	})
	return &Publisher{sink: sink, cb: cb}
}

func (p *Publisher) Publish(ctx context.Context, topic, key string, event any) {
	if p == nil || p.sink == nil {
		return
	}
	l := logging.FromContext(ctx).With("topic", topic, "key", key)

	_, err := p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.sink.PublishEvent(ctx, topic, key, event)
	})
	if err != nil {
		l.Warn("publish_event_error", "breaker", p.cb.State().String(), "error", err)
	}
}

func (p *Publisher) State() gobreaker.State {
	return p.cb.State()
}
