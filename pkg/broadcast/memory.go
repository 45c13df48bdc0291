package broadcast

import (
	"context"
	"sync"
)

// Memory is an in-process Broadcaster with latest-wins delivery: when a
// subscriber's buffer is full the oldest pending value is discarded, so a
// slow consumer always ends up observing the most recent value.
// All methods are safe for concurrent use.
type Memory[T any] struct {
	subs       map[*subscription[T]]struct{}
	bufferSize int
	closed     bool
	mu         sync.RWMutex
	cleanupWg  sync.WaitGroup
}

// NewMemory creates an in-memory broadcaster. bufferSize is the per-subscriber
// buffer (minimum 1). Use 1 for state streams where only the latest value
// matters.
func NewMemory[T any](bufferSize int) *Memory[T] {
	return &Memory[T]{
		subs:       make(map[*subscription[T]]struct{}),
		bufferSize: max(bufferSize, 1),
	}
}

func (b *Memory[T]) Subscribe(ctx context.Context) Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscription[T](b.bufferSize)
	if b.closed {
		_ = sub.Close()
		return sub
	}
	b.subs[sub] = struct{}{}

	b.cleanupWg.Add(1)
	go func() {
		defer b.cleanupWg.Done()
		select {
		case <-ctx.Done():
		case <-sub.done:
		}
		b.unsubscribe(sub)
	}()

	return sub
}

func (b *Memory[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for sub := range b.subs {
		sub.deliver(v)
	}
}

// Len reports the number of active subscriptions.
func (b *Memory[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Memory[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscription[T], 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	clear(b.subs)
	b.mu.Unlock()

	// Closing releases the per-subscription cleanup goroutines.
	for _, sub := range subs {
		_ = sub.Close()
	}
	b.cleanupWg.Wait()
	return nil
}

func (b *Memory[T]) unsubscribe(sub *subscription[T]) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	_ = sub.Close()
}
