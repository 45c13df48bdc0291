package broadcast

import (
	"context"
	"sync"
)

// Subscription receives values published by a Broadcaster.
type Subscription[T any] interface {
	// C returns the receive channel. It is closed when the subscription ends.
	C() <-chan T

	// Close ends the subscription. Idempotent.
	Close() error
}

// Broadcaster fans a stream of values out to every active subscription.
// Publish never blocks on a slow consumer.
type Broadcaster[T any] interface {
	// Subscribe registers a subscription that lives until ctx is cancelled,
	// Close is called on it, or the broadcaster is closed.
	Subscribe(ctx context.Context) Subscription[T]

	// Publish delivers v to all active subscriptions.
	Publish(v T)

	// Close ends every subscription. Idempotent.
	Close() error
}

type subscription[T any] struct {
	ch     chan T
	closed bool
	mu     sync.Mutex
	done   chan struct{}
}

func newSubscription[T any](bufferSize int) *subscription[T] {
	return &subscription[T]{
		ch:   make(chan T, bufferSize),
		done: make(chan struct{}),
	}
}

func (s *subscription[T]) C() <-chan T {
	return s.ch
}

func (s *subscription[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
		close(s.done)
	}
	return nil
}

// deliver enqueues v, discarding the oldest buffered value when the buffer
// is full. Returns false once the subscription is closed.
func (s *subscription[T]) deliver(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	for {
		select {
		case s.ch <- v:
			return true
		default:
		}
		// The receiver is the only other party touching ch, so once a slot
		// is freed the next send succeeds.
		select {
		case <-s.ch:
		default:
		}
	}
}
