// Package broadcast fans values out to many subscribers without letting a
// slow subscriber block the publisher.
//
// Delivery is latest-wins: when a subscriber's buffer is full, its oldest
// pending value is discarded to make room. This fits state streams, where a
// consumer that fell behind only needs the newest snapshot.
//
//	b := broadcast.NewMemory[notifystore.State](1)
//	defer b.Close()
//
//	sub := b.Subscribe(ctx) // ends when ctx is cancelled
//	go func() {
//	    for st := range sub.C() {
//	        render(st)
//	    }
//	}()
//
//	b.Publish(state)
package broadcast
