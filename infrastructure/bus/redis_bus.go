// Package bus provides the cross-instance fan-out bridge implementations.
package bus

import (
	"context"
	"log/slog"
	"relay-lab/contract"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const publishTimeout = 5 * time.Second

// RedisBus bridges instances over Redis pub/sub. Publishing is
// fire-and-forget: a payload published while the connection is down is
// dropped, there is no local queue. The subscriber loop reconnects with
// bounded exponential backoff and resubscribes every channel before
// resuming consumption.
//
// RedisBus runs under the supervisor like any other worker.
type RedisBus struct {
	log      *slog.Logger
	client   *redis.Client
	baseWait time.Duration
	maxWait  time.Duration

	mu       sync.RWMutex
	handlers map[string][]contract.BusHandler

	ready atomic.Bool
}

func NewRedisBus(log *slog.Logger, client *redis.Client, baseWait, maxWait time.Duration) *RedisBus {
	return &RedisBus{
		log:      log,
		client:   client,
		baseWait: baseWait,
		maxWait:  maxWait,
		handlers: make(map[string][]contract.BusHandler),
	}
}

// Subscribe registers a handler for one channel. All subscriptions must be
// in place before the bus worker starts; the reconnect path resubscribes
// from the same registration table.
func (b *RedisBus) Subscribe(channel string, handler contract.BusHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = append(b.handlers[channel], handler)
}

// Publish sends the payload without waiting for subscriber processing.
// Callers get no error back: best-effort, at most once per hop.
func (b *RedisBus) Publish(_ context.Context, channel string, payload []byte) {
	if !b.ready.Load() {
		b.log.Debug("Bus disconnected, dropping publish", "channel", channel)
		return
	}

	// Detached from the caller's context: closing a connection must not
	// cancel an in-flight publish.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
			b.log.Warn("Publish failed, payload dropped", "channel", channel, "error", err)
		}
	}()
}

// Run consumes subscribed channels until the context is canceled. Any
// subscription failure or stream end flips the bus to not-ready, waits the
// current backoff and starts over with a full resubscribe.
func (b *RedisBus) Run(ctx context.Context) error {
	wait := b.baseWait

	for {
		if ctx.Err() != nil {
			return nil
		}

		pubsub := b.client.Subscribe(ctx, b.channels()...)

		// Receive forces the SUBSCRIBE round-trip so ready only flips once
		// the server acknowledged every channel.
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			if ctx.Err() != nil {
				return nil
			}
			b.log.Warn("Bus subscribe failed, retrying", "wait", wait, "error", err)
			wait = b.sleep(ctx, wait)
			continue
		}

		b.ready.Store(true)
		wait = b.baseWait
		b.log.Info("Bus connected", "channels", b.channels())

		b.consume(ctx, pubsub.Channel())

		b.ready.Store(false)
		_ = pubsub.Close()

		if ctx.Err() != nil {
			return nil
		}
		b.log.Warn("Bus stream ended, reconnecting", "wait", wait)
		wait = b.sleep(ctx, wait)
	}
}

// consume drains the message stream until it closes or the context ends.
func (b *RedisBus) consume(ctx context.Context, messages <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			b.dispatch(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

// dispatch invokes every handler registered for the channel. A panicking
// handler must not kill the subscriber loop.
func (b *RedisBus) dispatch(ctx context.Context, channel string, payload []byte) {
	b.mu.RLock()
	handlers := b.handlers[channel]
	b.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("Bus handler panicked", "channel", channel, "panic", r)
				}
			}()
			handler(ctx, payload)
		}()
	}
}

// sleep waits the backoff duration and returns the next one, doubled and
// capped. Returns early on cancellation.
func (b *RedisBus) sleep(ctx context.Context, wait time.Duration) time.Duration {
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}

	next := wait * 2
	if next > b.maxWait {
		next = b.maxWait
	}
	return next
}

func (b *RedisBus) channels() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	channels := make([]string, 0, len(b.handlers))
	for channel := range b.handlers {
		channels = append(channels, channel)
	}
	return channels
}
