package events

import (
	"context"
	"sync"
)

// MemoryBus fans events out to in-process subscribers. Slow subscribers
// whose buffer is full miss events rather than blocking Publish.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	bufferSize  int
	closed      bool
}

type subscriber struct {
	mu     sync.RWMutex
	ch     chan Envelope
	closed bool
}

func (s *subscriber) send(e Envelope) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}

// NewMemoryBus creates a bus with the given per-subscriber buffer (min 1).
func NewMemoryBus(bufferSize int) *MemoryBus {
	return &MemoryBus{
		subscribers: make(map[*subscriber]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
}

// Subscribe returns a channel that receives every published event until ctx
// is cancelled or the bus is closed.
func (b *MemoryBus) Subscribe(ctx context.Context) <-chan Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{ch: make(chan Envelope, b.bufferSize)}
	if b.closed {
		sub.close()
		return sub.ch
	}
	b.subscribers[sub] = struct{}{}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			b.unsubscribe(sub)
		}()
	}
	return sub.ch
}

func (b *MemoryBus) Publish(_ context.Context, e Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}
	for sub := range b.subscribers {
		sub.send(e)
	}
	return nil
}

// Close closes every subscriber channel. Publishing afterwards fails with
// ErrBusClosed.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for sub := range b.subscribers {
		sub.close()
	}
	clear(b.subscribers)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBus) unsubscribe(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, sub)
	sub.close()
}
