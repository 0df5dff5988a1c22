package storage

import (
	"context"
	"log"
	"time"

	"github.com/sony/gobreaker"

	"switchmonitor/internal/models"
)

// BreakerSink stops calling a failing sink for a cool-down period so a dead
// backend cannot stall the polling loop. While open, Record fails fast with
// gobreaker.ErrOpenState.
type BreakerSink struct {
	next Sink
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerSink wraps next. The breaker opens after maxFailures consecutive
// failures and probes again after openFor.
func NewBreakerSink(next Sink, maxFailures int, openFor time.Duration) *BreakerSink {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &BreakerSink{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    next.Name(),
			Timeout: openFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= uint32(maxFailures)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("sink %s breaker %s -> %s", name, from, to)
			},
		}),
	}
}

// Name implements Sink.
func (b *BreakerSink) Name() string { return b.next.Name() }

// Record implements Sink.
func (b *BreakerSink) Record(ctx context.Context, ev models.TransitionEvent) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Record(ctx, ev)
	})
	return err
}

// State reports the breaker state.
func (b *BreakerSink) State() gobreaker.State {
	return b.cb.State()
}
