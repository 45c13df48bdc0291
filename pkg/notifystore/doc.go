// Package notifystore holds the canonical notification collection of one
// console session together with its severity counts, the connection flag
// and the active toasts.
//
// The collection never contains two notifications with the same id. Pushed
// notifications are prepended; initial and refresh loads replace the whole
// collection and never toast. Counts are recomputed from scratch under the
// same lock as the collection, so State always returns a consistent view.
//
// A Store is fed by a single realtime.Client per session:
//
//	store := notifystore.New(notifystore.WithSnapshot(snapshot.NewMemory(), sess.UserID))
//	client := realtime.New(resolver)
//
//	store.Start(ctx, client, sess)
//	defer store.Stop()
//
//	sub := store.Subscribe(ctx)
//	for st := range sub.C() {
//	    render(st)
//	}
//
// Start never returns an error. Connection failures are logged and leave the
// store offline, showing whatever was loaded from the snapshot.
package notifystore
