package bus

import (
	"context"
	"log/slog"
	"relay-lab/contract"
	"sync"
)

const defaultQueueSize = 1024

type memoryItem struct {
	channel string
	payload []byte
}

// MemoryBus is a same-process bridge with the exact delivery semantics the
// router expects from Redis: asynchronous, self-delivering, single-channel
// FIFO, best-effort. It backs single-instance deployments that run without
// Redis and the multi-instance tests, where several router/presence stacks
// share one MemoryBus.
type MemoryBus struct {
	log *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]contract.BusHandler
	closed   bool

	queue chan memoryItem
}

// NewMemoryBus builds a bridge with the given queue capacity; zero or
// negative falls back to the default.
func NewMemoryBus(log *slog.Logger, queueSize int) *MemoryBus {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	b := &MemoryBus{
		log:      log,
		handlers: make(map[string][]contract.BusHandler),
		queue:    make(chan memoryItem, queueSize),
	}
	// A single dispatcher preserves publish order per channel.
	go b.dispatchLoop()
	return b
}

func (b *MemoryBus) Subscribe(channel string, handler contract.BusHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = append(b.handlers[channel], handler)
}

// Publish enqueues without blocking; a full queue drops the payload, same
// contract as a disconnected Redis bridge.
func (b *MemoryBus) Publish(_ context.Context, channel string, payload []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	item := memoryItem{channel: channel, payload: append([]byte(nil), payload...)}
	select {
	case b.queue <- item:
	default:
		b.log.Warn("Memory bus queue full, dropping publish", "channel", channel)
	}
}

// Close stops the dispatcher once the queue drains. Payloads published after
// Close are dropped.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.queue)
}

func (b *MemoryBus) dispatchLoop() {
	for item := range b.queue {
		b.mu.RLock()
		handlers := b.handlers[item.channel]
		b.mu.RUnlock()

		for _, handler := range handlers {
			func() {
				defer func() {
					if r := recover(); r != nil {
						b.log.Error("Bus handler panicked", "channel", item.channel, "panic", r)
					}
				}()
				handler(context.Background(), item.payload)
			}()
		}
	}
}
