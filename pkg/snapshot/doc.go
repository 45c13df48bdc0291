// Package snapshot stores the last known notification list per console so
// cached alerts can be shown while the real-time stream is offline.
//
// Two implementations are provided: Memory for a single process and
// RedisStore for sharing the snapshot between console instances.
//
//	client, err := snapshot.ConnectRedis(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	store := snapshot.NewRedisStoreFromConfig(client, cfg)
//
// Snapshots are JSON documents {"savedAt", "notifications"}; unknown
// notification members survive the round trip.
package snapshot
